// Package stats - Statistik-Tabelle ueber viele Base-Namen
//
// Dieses Modul enthaelt:
// - Aggregator: Schickt eine norms Anfrage pro Base-Name (parallel)
// - Report: Erfolgreiche Ergebnisse plus verworfene Base-Namen
// - Cache: Optionaler Zwischenspeicher fuer bereits berechnete Metriken
//
// Einzelne Fehler brechen die Aggregation nie ab; sie landen in Dropped.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/worker"
)

// ErrPartialStatistics markiert einen Report mit verworfenen Base-Namen
var ErrPartialStatistics = errors.New("statistics incomplete")

// Result sind die Metriken eines Base-Namens
type Result struct {
	BaseName string             `json:"baseName"`
	Metrics  map[string]float64 `json:"metrics"`
	Cached   bool               `json:"cached,omitempty"`
}

// Dropped ist ein Base-Name, dessen Anfrage fehlgeschlagen ist
type Dropped struct {
	BaseName string `json:"baseName"`
	Error    string `json:"error"`
}

// Report ist das Ergebnis einer Aggregation
type Report struct {
	Results []Result  `json:"results"`
	Dropped []Dropped `json:"dropped,omitempty"`
}

// Err gibt ErrPartialStatistics zurueck wenn Base-Namen verworfen wurden
func (r Report) Err() error {
	if len(r.Dropped) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d dropped", ErrPartialStatistics, len(r.Dropped), len(r.Dropped)+len(r.Results))
}

// Sender schickt eine Anfrage und wartet auf die Antwort (worker.Correlator)
type Sender interface {
	Send(ctx context.Context, req worker.Request, matchFields ...string) (worker.Response, error)
}

// Publisher nimmt Fortschritts-Nachrichten an (worker.Hub)
type Publisher interface {
	Publish(resp worker.Response)
}

// Cache speichert Metriken pro Datei-Digest und Base-Name
type Cache interface {
	Get(ctx context.Context, digest, baseName string, metrics []string) (map[string]float64, bool, error)
	Put(ctx context.Context, digest, baseName string, values map[string]float64) error
}

// Aggregator sammelt norms fuer viele Base-Namen
type Aggregator struct {
	sender    Sender
	publisher Publisher

	// Cache und Digest sind optional
	Cache  Cache
	Digest string

	// Limit begrenzt gleichzeitige Anfragen, 0 bedeutet unbegrenzt
	Limit int64
}

// NewAggregator erstellt einen Aggregator; publisher darf nil sein
func NewAggregator(sender Sender, publisher Publisher) *Aggregator {
	return &Aggregator{
		sender:    sender,
		publisher: publisher,
		Limit:     int64(envconfig.MaxConcurrency()) * 4,
	}
}

// ForActor erstellt einen Aggregator fuer einen geladenen Worker-Actor
func ForActor(a *worker.Actor) *Aggregator {
	agg := NewAggregator(worker.NewCorrelator(a), a.Hub())
	if f := a.File(); f != nil {
		agg.Digest = f.Digest()
	}
	return agg
}

// Aggregate fragt norms fuer alle baseNames parallel an und wartet auf alle
// Antworten. Ergebnisse stehen in Anfrage-Reihenfolge. Pro erledigter Anfrage
// wird ein norms_progress Ereignis veroeffentlicht, danach der Sentinel.
func (a *Aggregator) Aggregate(ctx context.Context, baseNames []string, metrics ...string) Report {
	type outcome struct {
		result Result
		err    error
	}

	outcomes := make([]outcome, len(baseNames))

	var sem *semaphore.Weighted
	if a.Limit > 0 {
		sem = semaphore.NewWeighted(a.Limit)
	}

	var mu sync.Mutex
	current := 0
	progress := func(base string) {
		mu.Lock()
		defer mu.Unlock()
		current++
		a.publish(worker.Response{
			Type:     worker.TypeNormsProgress,
			BaseName: base,
			Payload:  worker.Progress{BaseName: base, CurrentCount: current, TotalCount: len(baseNames)},
		})
	}

	var wg sync.WaitGroup
	for i, base := range baseNames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer progress(base)

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					outcomes[i] = outcome{err: err}
					return
				}
				defer sem.Release(1)
			}

			r, err := a.one(ctx, base, metrics)
			outcomes[i] = outcome{result: r, err: err}
		}()
	}
	wg.Wait()

	a.publish(worker.Response{Type: worker.Finished(worker.TypeNormsProgress)})

	report := Report{Results: []Result{}}
	for i, o := range outcomes {
		if o.err != nil {
			slog.Debug("statistics dropped", "base", baseNames[i], "error", o.err)
			report.Dropped = append(report.Dropped, Dropped{BaseName: baseNames[i], Error: o.err.Error()})
			continue
		}
		report.Results = append(report.Results, o.result)
	}

	if err := report.Err(); err != nil {
		slog.Warn("partial statistics", "error", err)
	}
	return report
}

func (a *Aggregator) one(ctx context.Context, base string, metrics []string) (Result, error) {
	if a.Cache != nil && a.Digest != "" && len(metrics) > 0 {
		values, ok, err := a.Cache.Get(ctx, a.Digest, base, metrics)
		if err != nil {
			slog.Warn("stats cache read failed", "base", base, "error", err)
		} else if ok {
			return Result{BaseName: base, Metrics: values, Cached: true}, nil
		}
	}

	resp, err := a.sender.Send(ctx, worker.Request{Type: worker.TypeNorms, BaseName: base, Metrics: metrics}, "baseName")
	if err != nil {
		return Result{}, err
	}

	p, ok := resp.Payload.(worker.NormsPayload)
	if !ok {
		return Result{}, fmt.Errorf("unexpected payload %T for %s", resp.Payload, base)
	}

	if a.Cache != nil && a.Digest != "" {
		if err := a.Cache.Put(ctx, a.Digest, base, p.Norms); err != nil {
			slog.Warn("stats cache write failed", "base", base, "error", err)
		}
	}

	return Result{BaseName: base, Metrics: p.Norms}, nil
}

func (a *Aggregator) publish(resp worker.Response) {
	if a.publisher != nil {
		a.publisher.Publish(resp)
	}
}
