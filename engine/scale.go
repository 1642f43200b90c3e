// scale.go - Rekonstruktion der effektiven Gewichts-Deltas
//
// Hauptfunktionen:
// - LoRA: up @ down * alpha/rank
// - LoHa: (w1a @ w1b) ⊙ (w2a @ w2b) * alpha/rank
// - LoKr: kron(w1, w2) * scale
// - MatMul: Komposition zweier Faktoren

package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul multipliziert a [m, k] mit b [k, n]
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.NumElements() == 0 || b.NumElements() == 0 {
		return nil, fmt.Errorf("%w: empty factor", ErrShapeMismatch)
	}

	am, bm := a.Matrix(), b.Matrix()
	ar, ac := am.Dims()
	br, bc := bm.Dims()
	if ac != br {
		return nil, fmt.Errorf("%w: [%d, %d] @ [%d, %d]", ErrShapeMismatch, ar, ac, br, bc)
	}

	var out mat.Dense
	out.Mul(am, bm)
	return fromDense(&out), nil
}

// LoRA rekonstruiert up @ down und skaliert mit alpha/rank.
// alpha <= 0 bedeutet, dass die Datei kein alpha enthaelt (Skalierung 1).
func LoRA(up, down *Tensor, alpha float64) (*Tensor, error) {
	w, err := MatMul(up, down)
	if err != nil {
		return nil, err
	}

	scaleBy(w, alpha, down.Rows())
	return w, nil
}

// LoHa rekonstruiert das Hadamard-Produkt zweier Low-Rank Produkte
func LoHa(w1a, w1b, w2a, w2b *Tensor, alpha float64) (*Tensor, error) {
	w1, err := MatMul(w1a, w1b)
	if err != nil {
		return nil, fmt.Errorf("hada_w1: %w", err)
	}

	w2, err := MatMul(w2a, w2b)
	if err != nil {
		return nil, fmt.Errorf("hada_w2: %w", err)
	}

	r1, c1 := w1.Matrix().Dims()
	r2, c2 := w2.Matrix().Dims()
	if r1 != r2 || c1 != c2 {
		return nil, fmt.Errorf("%w: hadamard [%d, %d] * [%d, %d]", ErrShapeMismatch, r1, c1, r2, c2)
	}

	var out mat.Dense
	out.MulElem(w1.Matrix(), w2.Matrix())

	w := fromDense(&out)
	scaleBy(w, alpha, w1b.Rows())
	return w, nil
}

// LoKr rekonstruiert das Kronecker-Produkt von w1 und w2
func LoKr(w1, w2 *Tensor, scale float64) (*Tensor, error) {
	if w1.NumElements() == 0 || w2.NumElements() == 0 {
		return nil, fmt.Errorf("%w: empty kronecker factor", ErrShapeMismatch)
	}

	var out mat.Dense
	out.Kronecker(w1.Matrix(), w2.Matrix())

	w := fromDense(&out)
	if scale != 0 && scale != 1 {
		for i := range w.Data {
			w.Data[i] *= scale
		}
	}
	return w, nil
}

func scaleBy(w *Tensor, alpha float64, rank int) {
	if alpha <= 0 || rank <= 0 {
		return
	}

	s := alpha / float64(rank)
	for i := range w.Data {
		w.Data[i] *= s
	}
}

func fromDense(d *mat.Dense) *Tensor {
	r, c := d.Dims()
	data := make([]float64, 0, r*c)
	for i := range r {
		data = append(data, d.RawRowView(i)...)
	}
	return &Tensor{Shape: []int{r, c}, Data: data}
}
