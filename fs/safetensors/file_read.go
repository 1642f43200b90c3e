// Package safetensors - Safetensors Header Lese-Funktionen
//
// Dieses Modul enthaelt:
// - readHeader: Zerlegt den JSON-Header in Tensor-Infos und Metadaten
// - readMetadata: Liest __metadata__ als geordnete String-Map
// - validate: Prueft Offsets und Groessen einer Tensor-Info
package safetensors

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const metadataKey = "__metadata__"

// readHeader liest den Header in Datei-Reihenfolge
func (f *File) readHeader(bts []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(bts, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	f.tensors = orderedmap.New[string, TensorInfo](orderedmap.WithCapacity[string, TensorInfo](raw.Len()))
	f.metadata = orderedmap.New[string, string]()

	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == metadataKey {
			md, err := readMetadata(pair.Value)
			if err != nil {
				return err
			}
			f.metadata = md
			continue
		}

		var t TensorInfo
		if err := json.Unmarshal(pair.Value, &t); err != nil {
			return fmt.Errorf("%w: tensor %s: %w", ErrInvalidHeader, pair.Key, err)
		}
		t.Name = pair.Key

		if err := f.validate(t); err != nil {
			return err
		}

		f.tensors.Set(t.Name, t)
	}

	return nil
}

// readMetadata liest __metadata__. Werte sind laut Format Strings, andere
// JSON-Werte werden als ihr Quelltext uebernommen.
func readMetadata(bts json.RawMessage) (*orderedmap.OrderedMap[string, string], error) {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(bts, raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, metadataKey, err)
	}

	md := orderedmap.New[string, string](orderedmap.WithCapacity[string, string](raw.Len()))
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		var s string
		if err := json.Unmarshal(pair.Value, &s); err != nil {
			s = strings.TrimSpace(string(pair.Value))
		}
		md.Set(pair.Key, s)
	}

	return md, nil
}

// validate prueft, dass die Daten eines Tensors innerhalb der Datei liegen
func (f *File) validate(t TensorInfo) error {
	begin, end := t.Offsets[0], t.Offsets[1]
	if end < begin || int64(end) > f.size-f.offset {
		return fmt.Errorf("%w: tensor %s has invalid data offsets [%d, %d]", ErrInvalidHeader, t.Name, begin, end)
	}

	if t.DType.Size() > 0 {
		n, ok := t.checkedNumBytes()
		if !ok {
			return fmt.Errorf("%w: tensor %s: shape %v overflows", ErrInvalidHeader, t.Name, t.Shape)
		}
		if n != end-begin {
			return fmt.Errorf("%w: tensor %s: shape %v does not match %d bytes of %s", ErrInvalidHeader, t.Name, t.Shape, end-begin, t.DType)
		}
	}

	return nil
}
