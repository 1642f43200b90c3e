// tensor.go - Tensor-Info und Datentypen
// Enthaelt: DType Konstanten, TensorInfo mit Groessen-Hilfsfunktionen

package safetensors

import (
	"log/slog"
	"math/bits"
	"strings"
)

// DType ist der Datentyp eines Tensors, wie er im Header steht
type DType string

const (
	DTypeF64  DType = "F64"
	DTypeF32  DType = "F32"
	DTypeF16  DType = "F16"
	DTypeBF16 DType = "BF16"
	DTypeI64  DType = "I64"
	DTypeI32  DType = "I32"
	DTypeI16  DType = "I16"
	DTypeI8   DType = "I8"
	DTypeU8   DType = "U8"
	DTypeBool DType = "BOOL"
)

// Size gibt die Bytes pro Element zurueck, 0 fuer unbekannte Typen
func (d DType) Size() int {
	switch d {
	case DTypeF64, DTypeI64:
		return 8
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeBF16, DTypeI16:
		return 2
	case DTypeI8, DTypeU8, DTypeBool:
		return 1
	default:
		return 0
	}
}

// Precision gibt den kurzen Namen zurueck, wie er in Trainings-Tools ueblich ist
func (d DType) Precision() string {
	switch d {
	case DTypeF16:
		return "fp16"
	case DTypeBF16:
		return "bf16"
	case DTypeF32:
		return "fp32"
	case DTypeF64:
		return "fp64"
	default:
		return strings.ToLower(string(d))
	}
}

// TensorInfo beschreibt einen Tensor im Header
type TensorInfo struct {
	Name    string    `json:"-"`
	DType   DType     `json:"dtype"`
	Shape   []uint64  `json:"shape"`
	Offsets [2]uint64 `json:"data_offsets"`
}

// NumElements gibt die Anzahl der Elemente zurueck; ein Skalar hat 1 Element.
// Bei Ueberlauf ist das Ergebnis 0, siehe checkedNumBytes.
func (t TensorInfo) NumElements() uint64 {
	n, ok := t.checkedNumElements()
	if !ok {
		return 0
	}
	return n
}

func (t TensorInfo) checkedNumElements() (uint64, bool) {
	n := uint64(1)
	for _, d := range t.Shape {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// checkedNumBytes ist die aus Shape und DType erwartete Byte-Anzahl; false bei Ueberlauf
func (t TensorInfo) checkedNumBytes() (uint64, bool) {
	n, ok := t.checkedNumElements()
	if !ok {
		return 0, false
	}
	hi, lo := bits.Mul64(n, uint64(t.DType.Size()))
	return lo, hi == 0
}

// NumBytes gibt die Groesse der Daten in Bytes zurueck
func (t TensorInfo) NumBytes() uint64 {
	return t.Offsets[1] - t.Offsets[0]
}

func (t TensorInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", t.Name),
		slog.String("dtype", string(t.DType)),
		slog.Any("shape", t.Shape),
	)
}
