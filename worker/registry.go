// registry.go - Verwaltung der Worker-Actors nach Datei-Name
//
// Hauptfunktionen:
// - Add: Startet einen Actor, wartet auf Verfuegbarkeit und laedt die Datei
// - Get/List: Zugriff auf registrierte Actors
// - Remove/Close: Beendet Actors synchron
//
// Jeder Name zeigt auf hoechstens einen Actor. Eine neue Datei unter einem
// bekannten Namen ersetzt (und beendet) den alten Actor.

package worker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lora-inspector/inspector/envconfig"
)

// Registry haelt die aktiven Actors
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor

	loadTimeout   time.Duration
	probeInterval time.Duration

	newActorFn func(name string) *Actor
}

// NewRegistry erstellt eine leere Registry mit Zeitlimits aus envconfig
func NewRegistry() *Registry {
	return &Registry{
		actors:        make(map[string]*Actor),
		loadTimeout:   envconfig.LoadTimeout(),
		probeInterval: envconfig.ProbeInterval(),
		newActorFn:    NewActor,
	}
}

// Add startet einen neuen Actor fuer name und laedt path. Ein vorhandener
// Actor gleichen Namens wird vorher beendet.
func (r *Registry) Add(ctx context.Context, name, path string) (*Actor, MetadataPayload, error) {
	r.Remove(name)

	a := r.newActorFn(name)
	c := NewCorrelator(a)

	loadCtx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()

	if err := r.waitAvailable(loadCtx, c); err != nil {
		a.Terminate()
		return nil, MetadataPayload{}, r.loadError(ctx, err)
	}

	resp, err := c.Send(loadCtx, Request{Type: TypeFileUpload, Name: name, Path: path})
	if err != nil {
		a.Terminate()
		return nil, MetadataPayload{}, r.loadError(ctx, err)
	}

	r.mu.Lock()
	if old, ok := r.actors[name]; ok {
		// ein paralleles Add war schneller
		defer old.Terminate()
	}
	r.actors[name] = a
	r.mu.Unlock()

	md, _ := resp.Payload.(MetadataPayload)
	return a, md, nil
}

// loadError uebersetzt das Ablaufen des Lade-Limits in ErrIngestionTimeout
func (r *Registry) loadError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		slog.Warn("file ingestion timed out", "timeout", r.loadTimeout)
		return fmt.Errorf("%w after %s", ErrIngestionTimeout, r.loadTimeout)
	}
	return err
}

// waitAvailable sendet is_available im Probe-Intervall bis der Actor antwortet
func (r *Registry) waitAvailable(ctx context.Context, c *Correlator) error {
	for {
		probeCtx, cancel := context.WithTimeout(ctx, r.probeInterval)
		_, err := c.Send(probeCtx, Request{Type: TypeIsAvailable})
		cancel()

		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			slog.Debug("waiting for worker to become available")
		default:
			return err
		}
	}
}

// Get gibt den Actor fuer name zurueck
func (r *Registry) Get(name string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActorUnavailable, name)
	}
	return a, nil
}

// Remove beendet den Actor fuer name synchron
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	a, ok := r.actors[name]
	delete(r.actors, name)
	r.mu.Unlock()

	if ok {
		a.Terminate()
	}
	return ok
}

// List gibt alle Actors nach Name sortiert zurueck
func (r *Registry) List() []*Actor {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	slices.SortFunc(actors, func(a, b *Actor) int { return cmp.Compare(a.name, b.name) })
	return actors
}

// Close beendet alle Actors
func (r *Registry) Close() {
	r.mu.Lock()
	actors := r.actors
	r.actors = make(map[string]*Actor)
	r.mu.Unlock()

	for _, a := range actors {
		a.Terminate()
	}
}
