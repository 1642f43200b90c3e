// types_inspect.go - Anfrage/Antwort-Typen fuer keys, stats und blocks
// Enthaelt: KeysRequest, KeysResponse, StatsRequest, StatsResponse,
// BlocksRequest, BlocksResponse, ProgressResponse
package api

import "github.com/lora-inspector/inspector/keys"

// Key-Arten fuer KeysRequest.Kind
const (
	KindAll         = "all"
	KindUNet        = "unet"
	KindTextEncoder = "text_encoder"
	KindWeight      = "weight"
	KindAlpha       = "alpha"
	KindBaseNames   = "base_names"
)

// Kinds sind alle gueltigen Key-Arten
var Kinds = []string{KindAll, KindUNet, KindTextEncoder, KindWeight, KindAlpha, KindBaseNames}

// KeysRequest fragt Keys einer Art an; Classify liefert zusaetzlich die
// geparsten Block-Informationen
type KeysRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Classify bool   `json:"classify,omitempty"`
}

// KeysResponse enthaelt die Keys, bei Classify auch Parsed und Unrecognized
type KeysResponse struct {
	Kind         string           `json:"kind"`
	Keys         []string         `json:"keys"`
	Parsed       []keys.ParsedKey `json:"parsed,omitempty"`
	Unrecognized []string         `json:"unrecognized,omitempty"`
}

// StatsRequest fragt Metriken fuer Base-Namen an. Ohne BaseNames werden alle
// Base-Namen der Datei verwendet.
type StatsRequest struct {
	Name      string   `json:"name"`
	BaseNames []string `json:"baseNames,omitempty"`
	Metrics   []string `json:"metrics,omitempty"`
	Stream    *bool    `json:"stream,omitempty"`
}

// StatsResult sind die Metriken eines Base-Namens
type StatsResult struct {
	BaseName string             `json:"baseName"`
	Metrics  map[string]float64 `json:"metrics"`
	Cached   bool               `json:"cached,omitempty"`
}

// StatsDropped ist ein Base-Name ohne Ergebnis
type StatsDropped struct {
	BaseName string `json:"baseName"`
	Error    string `json:"error"`
}

// StatsResponse ist die letzte Zeile einer stats Antwort
type StatsResponse struct {
	Status  string         `json:"status,omitempty"`
	Metrics []string       `json:"metrics"`
	Results []StatsResult  `json:"results"`
	Dropped []StatsDropped `json:"dropped,omitempty"`
}

// BlocksRequest fragt die gemittelten L2-Normen pro Block an
type BlocksRequest struct {
	Name   string `json:"name"`
	Stream *bool  `json:"stream,omitempty"`
}

// Block ist eine Zeile der Block-Tabelle
type Block struct {
	Family     keys.Family `json:"family"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	BlockType  string      `json:"blockType"`
	BlockID    int         `json:"blockId"`
	ChartIndex int         `json:"chartIndex"`
	Mean       float64     `json:"mean"`
	Count      int         `json:"count"`
}

// BlocksResponse ist die letzte Zeile einer blocks Antwort. Blocks ist nach
// Familie und ChartIndex sortiert.
type BlocksResponse struct {
	Status       string   `json:"status,omitempty"`
	Blocks       []Block  `json:"blocks"`
	Unrecognized []string `json:"unrecognized,omitempty"`
	Failed       []string `json:"failed,omitempty"`
}

// ProgressResponse ist eine Fortschritts-Zeile im NDJSON Stream
type ProgressResponse struct {
	Status    string `json:"status"`
	BaseName  string `json:"baseName,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
}

// StatusSuccess markiert die abschliessende Zeile eines Streams
const StatusSuccess = "success"
