// Package loratest - Test-Fixtures fuer LoRA Dateien
//
// Dieses Modul enthaelt:
// - Tensor: Beschreibung eines Fixture-Tensors
// - Write: Schreibt eine Safetensors-Datei in t.TempDir()
// - LoRA/LoHa/LoKr: Erzeugt die Tensor-Saetze fuer einen Base-Namen
package loratest

import (
	"path/filepath"
	"testing"

	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/fs/safetensors"
)

// Tensor ist ein Fixture-Tensor; leerer DType bedeutet F32
type Tensor struct {
	Name   string
	DType  safetensors.DType
	Shape  []uint64
	Values []float32
}

// Write schreibt tensors und metadata nach dir/name und gibt den Pfad zurueck
func Write(t testing.TB, name string, metadata map[string]string, tensors ...Tensor) string {
	t.Helper()

	out := make([]safetensors.Tensor, 0, len(tensors))
	for _, tt := range tensors {
		dtype := tt.DType
		if dtype == "" {
			dtype = safetensors.DTypeF32
		}

		bts, err := engine.Encode(dtype, tt.Values)
		if err != nil {
			t.Fatalf("Fixture %s: %v", tt.Name, err)
		}
		out = append(out, safetensors.Tensor{Name: tt.Name, DType: dtype, Shape: tt.Shape, Data: bts})
	}

	path := filepath.Join(t.TempDir(), name)
	if err := safetensors.WriteFile(path, out, metadata); err != nil {
		t.Fatalf("Fixture schreiben fehlgeschlagen: %v", err)
	}
	return path
}

// Fill erzeugt n Werte start, start+step, ...
func Fill(n int, start, step float32) []float32 {
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = start + float32(i)*step
	}
	return vs
}

// LoRA erzeugt lora_up, lora_down und alpha fuer base
func LoRA(base string, rank, in, out int, alpha float32) []Tensor {
	return []Tensor{
		{Name: base + ".alpha", Shape: []uint64{}, Values: []float32{alpha}},
		{Name: base + ".lora_down.weight", Shape: []uint64{uint64(rank), uint64(in)}, Values: Fill(rank*in, 0.5, 0.25)},
		{Name: base + ".lora_up.weight", Shape: []uint64{uint64(out), uint64(rank)}, Values: Fill(out*rank, -1, 0.5)},
	}
}

// LoHa erzeugt die vier hada Faktoren und alpha fuer base
func LoHa(base string, rank, in, out int, alpha float32) []Tensor {
	return []Tensor{
		{Name: base + ".alpha", Shape: []uint64{}, Values: []float32{alpha}},
		{Name: base + ".hada_w1_a", Shape: []uint64{uint64(out), uint64(rank)}, Values: Fill(out*rank, 1, 0.5)},
		{Name: base + ".hada_w1_b", Shape: []uint64{uint64(rank), uint64(in)}, Values: Fill(rank*in, 0.5, 0.5)},
		{Name: base + ".hada_w2_a", Shape: []uint64{uint64(out), uint64(rank)}, Values: Fill(out*rank, -1, 0.25)},
		{Name: base + ".hada_w2_b", Shape: []uint64{uint64(rank), uint64(in)}, Values: Fill(rank*in, 2, -0.5)},
	}
}

// LoKr erzeugt volle lokr_w1/lokr_w2 Faktoren und alpha fuer base
func LoKr(base string, alpha float32) []Tensor {
	return []Tensor{
		{Name: base + ".alpha", Shape: []uint64{}, Values: []float32{alpha}},
		{Name: base + ".lokr_w1", Shape: []uint64{2, 2}, Values: []float32{1, 0, 0, 1}},
		{Name: base + ".lokr_w2", Shape: []uint64{2, 2}, Values: []float32{1, 2, 3, 4}},
	}
}
