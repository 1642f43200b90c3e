// weights.go - Rang, Alpha und Praezision einer LoRA Datei
//
// Hauptfunktionen:
// - Dims: Menge der Raenge
// - Alphas: Menge der alpha Werte
// - Precision: Datentyp des ersten Tensors
// - Tensor: Dekodiert einen einzelnen Tensor

package lora

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/fs/safetensors"
)

// rankSuffixes sind die Faktoren, deren erste Dimension der Rang ist
var rankSuffixes = []string{".lora_down.weight", ".lora_A.weight", ".hada_w1_b", ".lokr_w1_b"}

// Tensor dekodiert den Tensor name
func (f *File) Tensor(name string) (*engine.Tensor, error) {
	info, r, err := f.st.TensorReader(name)
	if err != nil {
		return nil, err
	}
	return engine.Decode(info, r)
}

// Dims gibt die sortierten, eindeutigen Raenge zurueck
func (f *File) Dims() []int {
	var dims []int
	for _, info := range f.st.TensorInfos() {
		if len(info.Shape) == 0 || !hasAnySuffix(info.Name, rankSuffixes) {
			continue
		}

		d := int(info.Shape[0])
		if !slices.Contains(dims, d) {
			dims = append(dims, d)
		}
	}

	slices.Sort(dims)
	return dims
}

// Alpha ist ein alpha Wert. Invalid markiert Werte, die nicht gelesen werden konnten.
type Alpha struct {
	Value   float64
	Invalid bool
}

// invalidAlpha ist die Darstellung nicht lesbarer alpha Werte
const invalidAlpha = "invalid alphas"

func (a Alpha) MarshalJSON() ([]byte, error) {
	if a.Invalid || math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return json.Marshal(invalidAlpha)
	}
	return json.Marshal(a.Value)
}

func (a *Alpha) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Alpha{Invalid: true}
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Alpha{Value: v}
	return nil
}

func (a Alpha) String() string {
	if a.Invalid {
		return invalidAlpha
	}
	return fmt.Sprintf("%g", a.Value)
}

// canonical rundet auf 2^-20, damit f16 Rundungsrauschen gleiche Werte nicht trennt
func (a Alpha) canonical() int64 {
	if a.Invalid {
		return math.MinInt64
	}
	return int64(math.Round(a.Value * 1024 * 1024))
}

// Alphas gibt die eindeutigen alpha Werte aufsteigend zurueck
func (f *File) Alphas() []Alpha {
	seen := map[int64]bool{}
	var alphas []Alpha
	for _, k := range f.AlphaKeys() {
		a := Alpha{Invalid: true}
		if t, err := f.Tensor(k); err == nil {
			if v, ok := t.Scalar(); ok {
				a = Alpha{Value: v}
			}
		}

		if c := a.canonical(); !seen[c] {
			seen[c] = true
			alphas = append(alphas, a)
		}
	}

	slices.SortFunc(alphas, func(x, y Alpha) int {
		if x.Invalid != y.Invalid {
			if x.Invalid {
				return 1
			}
			return -1
		}
		switch {
		case x.Value < y.Value:
			return -1
		case x.Value > y.Value:
			return 1
		}
		return 0
	})
	return alphas
}

// Precision ist die Praezision des ersten Tensors, leer ohne Tensors
func (f *File) Precision() string {
	for _, info := range f.st.TensorInfos() {
		return info.DType.Precision()
	}
	return ""
}

// DTypes zaehlt die Tensors je Datentyp
func (f *File) DTypes() map[safetensors.DType]int {
	out := map[safetensors.DType]int{}
	for _, info := range f.st.TensorInfos() {
		out[info.DType]++
	}
	return out
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
