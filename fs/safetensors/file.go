// Package safetensors - Safetensors File Struktur und Open/Close
//
// Dieses Modul enthaelt die File-Hauptstruktur fuer Safetensors-Dateien:
// - File: Repraesentiert eine geoeffnete Safetensors-Datei
// - Open: Oeffnet die Datei und parst nur den JSON-Header
// - Close: Schliesst die Datei
//
// Tensor-Daten werden nie komplett geladen, sondern ueber
// TensorReader als io.SectionReader gelesen.
package safetensors

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// maxHeaderSize begrenzt den JSON-Header auf 100 MiB
const maxHeaderSize = 100 << 20

var (
	// ErrInvalidHeader wird bei einem kaputten oder zu grossen Header zurueckgegeben
	ErrInvalidHeader = errors.New("invalid safetensors header")

	// ErrTensorNotFound wird zurueckgegeben wenn ein Tensor nicht existiert
	ErrTensorNotFound = errors.New("tensor not found")
)

// File repraesentiert eine geoeffnete Safetensors-Datei
type File struct {
	Path       string
	HeaderSize uint64

	tensors  *orderedmap.OrderedMap[string, TensorInfo]
	metadata *orderedmap.OrderedMap[string, string]
	digest   string

	// offset ist der Beginn des Datenbereichs
	offset int64
	size   int64

	file *os.File
}

// Open oeffnet eine Safetensors-Datei und parst den Header
func Open(path string) (f *File, err error) {
	f = &File{Path: path}
	f.file, err = os.Open(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			f.file.Close()
		}
	}()

	fi, err := f.file.Stat()
	if err != nil {
		return nil, err
	}
	f.size = fi.Size()

	if err := binary.Read(f.file, binary.LittleEndian, &f.HeaderSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	if f.HeaderSize > maxHeaderSize || int64(f.HeaderSize)+8 > f.size {
		return nil, fmt.Errorf("%w: header size %d exceeds file size %d", ErrInvalidHeader, f.HeaderSize, f.size)
	}

	bts := make([]byte, f.HeaderSize)
	if _, err := io.ReadFull(f.file, bts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	f.offset = 8 + int64(f.HeaderSize)

	if err := f.readHeader(bts); err != nil {
		return nil, err
	}

	if f.digest, err = digest(f.file, f.size); err != nil {
		return nil, err
	}

	slog.Debug("opened safetensors", "path", path, "tensors", f.tensors.Len(), "metadata", f.metadata.Len())
	return f, nil
}

// digest berechnet den sha256 ueber die ganze Datei, Header und Tensor-Daten
func digest(r io.ReaderAt, size int64) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, size)); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// Close schliesst die Datei
func (f *File) Close() error {
	return f.file.Close()
}
