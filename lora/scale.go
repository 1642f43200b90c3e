// scale.go - Rekonstruktion und Statistik pro Base-Name
//
// Hauptfunktionen:
// - ScaleWeight: Effektives Gewichts-Delta fuer einen Base-Namen
// - Norms: Metriken des skalierten Deltas
// - Scan: Metriken fuer viele Base-Namen parallel

package lora

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lora-inspector/inspector/engine"
)

func (f *File) has(name string) bool {
	_, ok := f.st.TensorInfo(name)
	return ok
}

// alpha liest base.alpha; 0 bedeutet kein alpha (keine Skalierung)
func (f *File) alpha(base string) (float64, error) {
	name := base + ".alpha"
	if !f.has(name) {
		return 0, nil
	}

	t, err := f.Tensor(name)
	if err != nil {
		return 0, err
	}

	v, _ := t.Scalar()
	return v, nil
}

// rsAlpha passt alpha fuer rs-LoRA an, damit alpha/rank zu alpha/sqrt(rank) wird
func (f *File) rsAlpha(alpha float64, rank int) float64 {
	if alpha > 0 && rank > 0 && f.meta.RankStabilized() {
		return alpha * math.Sqrt(float64(rank))
	}
	return alpha
}

func (f *File) tensors(names ...string) ([]*engine.Tensor, error) {
	out := make([]*engine.Tensor, 0, len(names))
	for _, name := range names {
		if !f.has(name) {
			return nil, fmt.Errorf("%w: missing %s", ErrIncompleteWeights, name)
		}

		t, err := f.Tensor(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ScaleWeight rekonstruiert das effektive Gewichts-Delta fuer base.
// Das Verfahren folgt den vorhandenen Schluesseln: lora_up/lora_down,
// lora_B/lora_A, hada_*, lokr_* oder diff.
func (f *File) ScaleWeight(base string) (*engine.Tensor, error) {
	alpha, err := f.alpha(base)
	if err != nil {
		return nil, err
	}

	switch {
	case f.has(base + ".lora_up.weight"):
		ts, err := f.tensors(base+".lora_up.weight", base+".lora_down.weight")
		if err != nil {
			return nil, err
		}
		return engine.LoRA(ts[0], ts[1], f.rsAlpha(alpha, ts[1].Rows()))
	case f.has(base + ".lora_B.weight"):
		ts, err := f.tensors(base+".lora_B.weight", base+".lora_A.weight")
		if err != nil {
			return nil, err
		}
		return engine.LoRA(ts[0], ts[1], f.rsAlpha(alpha, ts[1].Rows()))
	case f.has(base + ".hada_w1_a"):
		ts, err := f.tensors(base+".hada_w1_a", base+".hada_w1_b", base+".hada_w2_a", base+".hada_w2_b")
		if err != nil {
			return nil, err
		}
		return engine.LoHa(ts[0], ts[1], ts[2], ts[3], alpha)
	case f.has(base+".lokr_w1") || f.has(base+".lokr_w1_a"):
		return f.scaleLoKr(base, alpha)
	case f.has(base + ".diff"):
		return f.Tensor(base + ".diff")
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoWeights, base)
	}
}

// lokrFactor liest lokr_wN oder komponiert lokr_wN_a @ lokr_wN_b.
// rank ist 0 fuer volle Faktoren.
func (f *File) lokrFactor(base string, n int) (t *engine.Tensor, rank int, err error) {
	full := fmt.Sprintf("%s.lokr_w%d", base, n)
	if f.has(full) {
		t, err := f.Tensor(full)
		return t, 0, err
	}

	ts, err := f.tensors(full+"_a", full+"_b")
	if err != nil {
		return nil, 0, err
	}

	t, err = engine.MatMul(ts[0], ts[1])
	return t, ts[1].Rows(), err
}

func (f *File) scaleLoKr(base string, alpha float64) (*engine.Tensor, error) {
	w1, r1, err := f.lokrFactor(base, 1)
	if err != nil {
		return nil, err
	}

	w2, r2, err := f.lokrFactor(base, 2)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	if rank := max(r1, r2); rank > 0 && alpha > 0 {
		scale = alpha / float64(rank)
	}
	return engine.LoKr(w1, w2, scale)
}

// Norms berechnet metrics fuer das skalierte Delta von base
func (f *File) Norms(base string, metrics ...engine.Metric) (map[string]float64, error) {
	w, err := f.ScaleWeight(base)
	if err != nil {
		return nil, fmt.Errorf("could not get scaled weights for %s: %w", base, err)
	}

	if len(metrics) == 0 {
		metrics = engine.DefaultMetrics
	}
	return engine.Norms(w, metrics...), nil
}

// ScanFunc wird pro Base-Name aufgerufen, nie gleichzeitig
type ScanFunc func(base string, norms map[string]float64, err error) error

// Scan berechnet metrics fuer bases mit hoechstens limit Goroutines.
// Fehler einzelner Base-Namen gehen an fn; nur ein Fehler von fn oder
// ein abgebrochener ctx beendet den Scan.
func (f *File) Scan(ctx context.Context, bases []string, limit int, fn ScanFunc, metrics ...engine.Metric) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	for _, base := range bases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			norms, err := f.Norms(base, metrics...)
			if err != nil {
				slog.Debug("scan", "base", base, "error", err)
			}

			mu.Lock()
			defer mu.Unlock()
			return fn(base, norms, err)
		})
	}

	return g.Wait()
}
