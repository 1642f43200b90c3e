// Package safetensors - Safetensors File Accessor Methoden
//
// Dieses Modul enthaelt die Zugriffs-Methoden fuer Safetensors-Dateien:
// - Keys: Alle Tensor-Namen in Datei-Reihenfolge
// - TensorInfo: Sucht Tensor-Info nach Name
// - TensorInfos: Iterator ueber alle Tensor-Infos
// - Metadata: Eingebettete __metadata__ Eintraege
// - TensorReader: Liefert einen Reader fuer Tensor-Daten
package safetensors

import (
	"fmt"
	"io"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Keys gibt alle Tensor-Namen in Datei-Reihenfolge zurueck
func (f *File) Keys() []string {
	keys := make([]string, 0, f.tensors.Len())
	for pair := f.tensors.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// NumTensors gibt die Anzahl der Tensors zurueck
func (f *File) NumTensors() int {
	return f.tensors.Len()
}

// TensorInfo sucht Tensor-Info nach Name
func (f *File) TensorInfo(name string) (TensorInfo, bool) {
	return f.tensors.Get(name)
}

// TensorInfos gibt einen Iterator ueber alle Tensor-Infos zurueck
func (f *File) TensorInfos() iter.Seq2[int, TensorInfo] {
	return func(yield func(int, TensorInfo) bool) {
		i := 0
		for pair := f.tensors.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(i, pair.Value) {
				return
			}
			i++
		}
	}
}

// Metadata gibt die __metadata__ Eintraege in Datei-Reihenfolge zurueck
func (f *File) Metadata() *orderedmap.OrderedMap[string, string] {
	return f.metadata
}

// MetadataMap gibt die Metadaten als einfache Map zurueck
func (f *File) MetadataMap() map[string]string {
	m := make(map[string]string, f.metadata.Len())
	for pair := f.metadata.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// Digest ist der sha256 der ganzen Datei und identifiziert den Datei-Inhalt
func (f *File) Digest() string {
	return f.digest
}

// Size gibt die Groesse der Datei in Bytes zurueck
func (f *File) Size() int64 {
	return f.size
}

// TensorReader liefert Tensor-Info und einen Reader fuer die Tensor-Daten
func (f *File) TensorReader(name string) (TensorInfo, io.Reader, error) {
	t, ok := f.tensors.Get(name)
	if !ok {
		return TensorInfo{}, nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}

	return t, io.NewSectionReader(f.file, f.offset+int64(t.Offsets[0]), int64(t.NumBytes())), nil
}
