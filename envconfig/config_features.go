// config_features.go - Feature-Flags und Parallelitaet
//
// Dieses Modul enthaelt:
// - Feature-Flags (NoCache)
// - MaxConcurrency: Obergrenze paralleler Anfragen pro Actor
package envconfig

import "runtime"

var (
	// NoCache deaktiviert den sqlite Cache fuer Normen
	NoCache = Bool("LORA_INSPECTOR_NOCACHE")
)

// MaxConcurrency gibt die maximale Anzahl parallel bearbeiteter Anfragen
// pro Actor zurueck
// Konfigurierbar via LORA_INSPECTOR_MAX_CONCURRENCY
// Default: Anzahl der CPUs
func MaxConcurrency() uint {
	n := Uint("LORA_INSPECTOR_MAX_CONCURRENCY", uint(runtime.NumCPU()))()
	if n == 0 {
		return 1
	}

	return n
}
