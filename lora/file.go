// Package lora - LoRA Datei-Modell
//
// Dieses Modul enthaelt:
// - File: Eine geoeffnete LoRA Datei (Safetensors + Trainings-Metadaten)
// - Open/Close: Lebenszyklus
// - Format: Erkennung von kohya, PEFT und LyCORIS Schluessel-Layouts
//
// Ein File ist nach dem Oeffnen nur lesbar und kann von mehreren Goroutines
// gleichzeitig benutzt werden. Tensor-Daten werden bei Bedarf gelesen.
package lora

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lora-inspector/inspector/fs/safetensors"
	"github.com/lora-inspector/inspector/metadata"
)

var (
	// ErrNoWeights wird zurueckgegeben wenn ein Base-Name keine bekannten Faktoren hat
	ErrNoWeights = errors.New("no weights for base name")

	// ErrIncompleteWeights wird zurueckgegeben wenn Faktoren fehlen
	ErrIncompleteWeights = errors.New("incomplete weights")
)

// File ist eine geoeffnete LoRA Datei
type File struct {
	name string
	st   *safetensors.File
	meta *metadata.Metadata
}

// Open oeffnet path und liest Header und Metadaten
func Open(path string) (*File, error) {
	st, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	return &File{
		name: filepath.Base(path),
		st:   st,
		meta: metadata.FromOrdered(st.Metadata()),
	}, nil
}

// Close schliesst die darunterliegende Datei
func (f *File) Close() error {
	return f.st.Close()
}

// Name ist der Dateiname ohne Verzeichnis
func (f *File) Name() string {
	return f.name
}

// Path ist der volle Pfad der Datei
func (f *File) Path() string {
	return f.st.Path
}

// Digest identifiziert den Datei-Inhalt (sha256 ueber Header und Tensor-Daten)
func (f *File) Digest() string {
	return f.st.Digest()
}

// Size ist die Dateigroesse in Bytes
func (f *File) Size() int64 {
	return f.st.Size()
}

// Metadata gibt die Trainings-Metadaten zurueck
func (f *File) Metadata() *metadata.Metadata {
	return f.meta
}

// Safetensors gibt die darunterliegende Datei zurueck
func (f *File) Safetensors() *safetensors.File {
	return f.st
}

func (f *File) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", f.name),
		slog.Int("tensors", f.st.NumTensors()),
		slog.Int("metadata", f.meta.Len()),
		slog.String("digest", f.Digest()),
	)
}

// Format beschreibt das Schluessel-Layout der Datei
type Format string

const (
	FormatKohya   Format = "kohya"
	FormatPEFT    Format = "peft"
	FormatLycoris Format = "lycoris"
	FormatDiff    Format = "diff"
	FormatUnknown Format = "unknown"
)

// Format erkennt das Layout am ersten Gewichts-Schluessel
func (f *File) Format() Format {
	for _, k := range f.Keys() {
		switch {
		case strings.Contains(k, ".lora_down.") || strings.Contains(k, ".lora_up."):
			return FormatKohya
		case strings.Contains(k, ".lora_A.") || strings.Contains(k, ".lora_B."):
			return FormatPEFT
		case strings.Contains(k, ".hada_") || strings.Contains(k, ".lokr_") || strings.Contains(k, ".oft_"):
			return FormatLycoris
		case strings.HasSuffix(k, ".diff"):
			return FormatDiff
		}
	}

	// Dateien ohne Faktoren (z.B. nur Metadaten) gelten als kohya
	if f.st.NumTensors() == 0 {
		return FormatKohya
	}
	return FormatUnknown
}
