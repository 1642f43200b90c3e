// Package engine - Numerische Kernels fuer LoRA Gewichte
//
// Dieses Modul enthaelt:
// - Tensor: Dichte float64 Daten mit Shape
// - Decode: Dekodiert Safetensors-Daten (F16, BF16, F32, F64)
// - Encode: Kodiert float32 Werte fuer Test-Fixtures und Export
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"

	"github.com/lora-inspector/inspector/fs/safetensors"
)

var (
	// ErrUnsupportedDType wird fuer nicht dekodierbare Datentypen zurueckgegeben
	ErrUnsupportedDType = errors.New("unsupported dtype")

	// ErrShapeMismatch wird zurueckgegeben wenn Faktoren nicht zusammenpassen
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Tensor haelt dekodierte Werte in Row-Major Reihenfolge
type Tensor struct {
	Shape []int
	Data  []float64
}

// NumElements gibt die Anzahl der Werte zurueck
func (t *Tensor) NumElements() int {
	return len(t.Data)
}

// Rows ist die erste Dimension, 1 fuer Skalare
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 || t.Shape[0] == 0 {
		return 1
	}
	return t.Shape[0]
}

// Matrix sieht den Tensor als [shape[0], rest] Matrix; Conv-Kernel werden dabei
// ab der zweiten Dimension flach gelegt
func (t *Tensor) Matrix() *mat.Dense {
	rows := t.Rows()
	return mat.NewDense(rows, len(t.Data)/rows, t.Data)
}

// Scalar gibt den ersten Wert zurueck, z.B. fuer alpha
func (t *Tensor) Scalar() (float64, bool) {
	if len(t.Data) == 0 {
		return 0, false
	}
	return t.Data[0], true
}

// Decode liest die Daten eines Tensors aus r
func Decode(info safetensors.TensorInfo, r io.Reader) (*Tensor, error) {
	size := info.DType.Size()
	n := int(info.NumElements())

	switch info.DType {
	case safetensors.DTypeF16, safetensors.DTypeBF16, safetensors.DTypeF32, safetensors.DTypeF64:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, info.DType)
	}

	bts := make([]byte, n*size)
	if _, err := io.ReadFull(r, bts); err != nil {
		return nil, fmt.Errorf("read %s: %w", info.Name, err)
	}

	t := &Tensor{Data: make([]float64, n)}
	for _, d := range info.Shape {
		t.Shape = append(t.Shape, int(d))
	}

	switch info.DType {
	case safetensors.DTypeF16:
		for i := range n {
			t.Data[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(bts[2*i:])).Float32())
		}
	case safetensors.DTypeBF16:
		for i, f := range bfloat16.DecodeFloat32(bts) {
			t.Data[i] = float64(f)
		}
	case safetensors.DTypeF32:
		for i := range n {
			t.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(bts[4*i:])))
		}
	case safetensors.DTypeF64:
		for i := range n {
			t.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(bts[8*i:]))
		}
	}

	return t, nil
}

// Encode kodiert values im Datentyp dtype
func Encode(dtype safetensors.DType, values []float32) ([]byte, error) {
	switch dtype {
	case safetensors.DTypeF16:
		bts := make([]byte, 0, 2*len(values))
		for _, v := range values {
			bts = binary.LittleEndian.AppendUint16(bts, float16.Fromfloat32(v).Bits())
		}
		return bts, nil
	case safetensors.DTypeBF16:
		return bfloat16.EncodeFloat32(values), nil
	case safetensors.DTypeF32:
		bts := make([]byte, 0, 4*len(values))
		for _, v := range values {
			bts = binary.LittleEndian.AppendUint32(bts, math.Float32bits(v))
		}
		return bts, nil
	case safetensors.DTypeF64:
		bts := make([]byte, 0, 8*len(values))
		for _, v := range values {
			bts = binary.LittleEndian.AppendUint64(bts, math.Float64bits(float64(v)))
		}
		return bts, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
}
