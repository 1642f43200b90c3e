// config.go - Haupt-Konfigurationsfunktionen fuer den LoRA Inspector
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (LORA_INSPECTOR_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (LORA_INSPECTOR_ORIGINS)
// - LoadTimeout: Gibt das Ingestion-Timeout zurueck (LORA_INSPECTOR_LOAD_TIMEOUT)
// - ProbeInterval: Gibt das Intervall der Liveness-Probe zurueck (LORA_INSPECTOR_PROBE_INTERVAL)
// - Cache: Gibt den Pfad des Statistik-Caches zurueck (LORA_INSPECTOR_CACHE)
// - LogLevel: Gibt Log-Level zurueck (LORA_INSPECTOR_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Feature-Flags und Parallelitaet
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via LORA_INSPECTOR_HOST
// Default: http://127.0.0.1:11535
func Host() *url.URL {
	defaultPort := "11535"

	s := strings.TrimSpace(Var("LORA_INSPECTOR_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via LORA_INSPECTOR_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("LORA_INSPECTOR_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"app://*",
		"file://*",
		"vscode-webview://*",
	)

	return origins
}

// duration liest eine Dauer als Go-Duration oder als Sekunden
func duration(key string, defaultValue time.Duration) time.Duration {
	d := defaultValue
	if s := Var(key); s != "" {
		if v, err := time.ParseDuration(s); err == nil {
			d = v
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			d = time.Duration(n) * time.Second
		} else {
			slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
		}
	}

	return d
}

// LoadTimeout gibt das Timeout fuer die Ingestion einer Datei zurueck
// Konfigurierbar via LORA_INSPECTOR_LOAD_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 30 Sekunden
func LoadTimeout() time.Duration {
	loadTimeout := duration("LORA_INSPECTOR_LOAD_TIMEOUT", 30*time.Second)
	if loadTimeout <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return loadTimeout
}

// ProbeInterval gibt das Intervall zurueck, in dem ein neuer Actor
// per is_available abgefragt wird
// Konfigurierbar via LORA_INSPECTOR_PROBE_INTERVAL
// Default: 200 Millisekunden
func ProbeInterval() time.Duration {
	interval := duration("LORA_INSPECTOR_PROBE_INTERVAL", 200*time.Millisecond)
	if interval <= 0 {
		return 200 * time.Millisecond
	}

	return interval
}

// Cache gibt den Pfad der sqlite Datenbank fuer gecachte Normen zurueck
// Konfigurierbar via LORA_INSPECTOR_CACHE
// Default: $HOME/.lora-inspector/cache.db, leer wenn NoCache gesetzt ist
func Cache() string {
	if NoCache() {
		return ""
	}

	if s := Var("LORA_INSPECTOR_CACHE"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".lora-inspector", "cache.db")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via LORA_INSPECTOR_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LORA_INSPECTOR_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
