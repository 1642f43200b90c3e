// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"LORA_INSPECTOR_DEBUG":           {"LORA_INSPECTOR_DEBUG", LogLevel(), "Show additional debug information (e.g. LORA_INSPECTOR_DEBUG=1)"},
		"LORA_INSPECTOR_HOST":            {"LORA_INSPECTOR_HOST", Host(), "IP Address for the inspector server (default 127.0.0.1:11535)"},
		"LORA_INSPECTOR_LOAD_TIMEOUT":    {"LORA_INSPECTOR_LOAD_TIMEOUT", LoadTimeout(), "How long to wait for a file to be ingested before giving up (default \"30s\")"},
		"LORA_INSPECTOR_PROBE_INTERVAL":  {"LORA_INSPECTOR_PROBE_INTERVAL", ProbeInterval(), "Interval between liveness probes of a new worker (default \"200ms\")"},
		"LORA_INSPECTOR_MAX_CONCURRENCY": {"LORA_INSPECTOR_MAX_CONCURRENCY", MaxConcurrency(), "Maximum number of requests a worker handles in parallel"},
		"LORA_INSPECTOR_ORIGINS":         {"LORA_INSPECTOR_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"LORA_INSPECTOR_CACHE":           {"LORA_INSPECTOR_CACHE", Cache(), "Path of the sqlite cache for computed norms"},
		"LORA_INSPECTOR_NOCACHE":         {"LORA_INSPECTOR_NOCACHE", NoCache(), "Do not cache computed norms"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
