// write.go - Schreiben von Safetensors-Dateien
// Hauptfunktionen: WriteFile

package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tensor ist ein Tensor mit rohen Daten zum Schreiben
type Tensor struct {
	Name  string
	DType DType
	Shape []uint64
	Data  []byte
}

// WriteFile schreibt tensors und metadata als Safetensors-Datei nach path.
// Die Reihenfolge der Tensors bleibt im Header erhalten.
func WriteFile(path string, tensors []Tensor, metadata map[string]string) error {
	header := orderedmap.New[string, any]()
	if len(metadata) > 0 {
		header.Set(metadataKey, metadata)
	}

	var data bytes.Buffer
	for _, t := range tensors {
		begin := uint64(data.Len())
		data.Write(t.Data)

		shape := t.Shape
		if shape == nil {
			shape = []uint64{}
		}

		header.Set(t.Name, TensorInfo{
			DType:   t.DType,
			Shape:   shape,
			Offsets: [2]uint64{begin, uint64(data.Len())},
		})
	}

	bts, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	// Header auf 8 Bytes ausrichten
	if pad := len(bts) % 8; pad != 0 {
		bts = append(bts, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(len(bts))); err != nil {
		return err
	}

	if _, err := f.Write(bts); err != nil {
		return err
	}

	if _, err := data.WriteTo(f); err != nil {
		return err
	}

	return f.Close()
}
