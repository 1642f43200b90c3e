// Package metadata - Trainings-Metadaten aus dem Safetensors __metadata__ Block
//
// Dieses Modul enthaelt:
// - Metadata: Geordnete Sicht auf die rohen String-Eintraege
// - Parse/FromOrdered: Konstruktoren
// - Get/Keys/Map: Zugriffe
//
// Alle Werte sind Strings, verschachtelte Strukturen (ss_network_args,
// ss_datasets, ...) sind JSON in einem String und werden erst beim Zugriff
// dekodiert.
package metadata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrMalformedJSON wird geloggt wenn ein JSON-Feld nicht dekodiert werden kann;
// der Aufrufer bekommt dann einen leeren Wert
var ErrMalformedJSON = errors.New("malformed metadata json")

// Bekannte Metadaten-Schluessel
const (
	KeyNetworkModule  = "ss_network_module"
	KeyNetworkArgs    = "ss_network_args"
	KeyNetworkDim     = "ss_network_dim"
	KeyNetworkAlpha   = "ss_network_alpha"
	KeyDatasetDirs    = "ss_dataset_dirs"
	KeyTagFrequency   = "ss_tag_frequency"
	KeyDatasets       = "ss_datasets"
	KeyOutputName     = "ss_output_name"
	KeySDModelName    = "ss_sd_model_name"
	KeyBaseModel      = "ss_base_model_version"
	KeyTrainingStart  = "ss_training_started_at"
	KeyTrainingFinish = "ss_training_finished_at"
)

// Metadata haelt die rohen __metadata__ Eintraege in Datei-Reihenfolge
type Metadata struct {
	raw *orderedmap.OrderedMap[string, string]
}

// FromOrdered uebernimmt eine bereits geordnete Map
func FromOrdered(om *orderedmap.OrderedMap[string, string]) *Metadata {
	if om == nil {
		om = orderedmap.New[string, string]()
	}
	return &Metadata{raw: om}
}

// Parse baut Metadata aus einer einfachen Map, Schluessel werden sortiert
func Parse(m map[string]string) *Metadata {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	om := orderedmap.New[string, string](orderedmap.WithCapacity[string, string](len(keys)))
	for _, k := range keys {
		om.Set(k, m[k])
	}
	return &Metadata{raw: om}
}

// Get gibt einen rohen Wert zurueck
func (m *Metadata) Get(key string) (string, bool) {
	return m.raw.Get(key)
}

// Len ist die Anzahl der Eintraege
func (m *Metadata) Len() int {
	return m.raw.Len()
}

// Keys gibt die Schluessel in Datei-Reihenfolge zurueck
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, m.raw.Len())
	for pair := m.raw.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map gibt eine Kopie als einfache Map zurueck
func (m *Metadata) Map() map[string]string {
	out := make(map[string]string, m.raw.Len())
	for pair := m.raw.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// MarshalJSON schreibt die Eintraege in Datei-Reihenfolge
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.raw)
}

// UnmarshalJSON liest ein JSON-Objekt aus String-Werten, z.B. einen Export
func (m *Metadata) UnmarshalJSON(b []byte) error {
	om := orderedmap.New[string, string]()
	if err := json.Unmarshal(b, om); err != nil {
		return err
	}
	m.raw = om
	return nil
}

// decodeField dekodiert ein JSON-Feld; fehlende Felder liefern false ohne Log
func decodeField(m *Metadata, key string, v any) bool {
	s, ok := m.raw.Get(key)
	if !ok || s == "" || s == "None" {
		return false
	}

	if err := json.Unmarshal([]byte(s), v); err != nil {
		slog.Warn("metadata field could not be decoded", "key", key, "error", errors.Join(ErrMalformedJSON, err))
		return false
	}
	return true
}
