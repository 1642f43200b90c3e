// types.go - Fehler- und Basis-Typen der API
// Enthaelt: StatusError und die Anfrage/Antwort-Typen
// fuer load, unload, ps und show
package api

import (
	"fmt"
	"time"

	"github.com/lora-inspector/inspector/metadata"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the lora-inspector server logs for details"
	}
}

// LoadRequest laedt eine Datei in einen neuen Worker. Ohne Name wird der
// Dateiname verwendet.
type LoadRequest struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path"`
}

// LoadResponse fasst die geladene Datei zusammen
type LoadResponse struct {
	Name       string             `json:"name"`
	Digest     string             `json:"digest"`
	Size       int64              `json:"size"`
	NumTensors int                `json:"numTensors"`
	Metadata   *metadata.Metadata `json:"metadata"`
}

// UnloadRequest beendet den Worker einer Datei
type UnloadRequest struct {
	Name string `json:"name"`
}

// ProcessFile ist ein geladener Worker
type ProcessFile struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	NumTensors int       `json:"numTensors"`
	State      string    `json:"state"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// ProcessResponse listet alle geladenen Worker
type ProcessResponse struct {
	Files []ProcessFile `json:"files"`
}

// ShowRequest fragt die Zusammenfassung einer geladenen Datei an
type ShowRequest struct {
	Name string `json:"name"`
}

// KeyCounts zaehlt die Keys einer Datei nach Art
type KeyCounts struct {
	Total       int `json:"total"`
	UNet        int `json:"unet"`
	TextEncoder int `json:"textEncoder"`
	Weight      int `json:"weight"`
	Alpha       int `json:"alpha"`
	BaseNames   int `json:"baseNames"`
}

// ShowResponse beschreibt Netzwerk, Gewichte und Metadaten einer Datei
type ShowResponse struct {
	Name                string                         `json:"name"`
	Format              string                         `json:"format"`
	NetworkModule       string                         `json:"networkModule"`
	NetworkType         string                         `json:"networkType"`
	NetworkArgs         *metadata.NetworkArgs          `json:"networkArgs,omitempty"`
	Precision           string                         `json:"precision"`
	Dims                []int                          `json:"dims"`
	Alphas              []string                       `json:"alphas"`
	WeightDecomposition string                         `json:"weightDecomposition,omitempty"`
	RankStabilized      bool                           `json:"rankStabilized"`
	Keys                KeyCounts                      `json:"keys"`
	TopTags             []metadata.TagCount            `json:"topTags,omitempty"`
	DatasetDirs         map[string]metadata.DatasetDir `json:"datasetDirs,omitempty"`
	Metadata            *metadata.Metadata             `json:"metadata"`
}
