// actor.go - Worker-Actor fuer genau eine LoRA Datei
//
// Hauptfunktionen:
// - NewActor: Erstellt und startet einen Actor
// - Post: Stellt eine Anfrage in die Inbox
// - Terminate: Beendet den Actor synchron
//
// Anfragen werden in Empfangs-Reihenfolge angenommen und parallel
// bearbeitet (begrenzt durch einen Semaphor). Antworten koennen daher in
// beliebiger Reihenfolge eintreffen.

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/logutil"
	"github.com/lora-inspector/inspector/lora"
)

// State ist der Lebenszyklus-Zustand eines Actors
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "terminated"
	}
}

// inboxSize ist die Kapazitaet der Inbox
const inboxSize = 64

// Actor haelt genau eine Datei und beantwortet Anfragen darueber
type Actor struct {
	name    string
	started time.Time

	inbox chan Request
	hub   *Hub
	sem   *semaphore.Weighted

	// open oeffnet die Datei bei file_upload
	open func(ctx context.Context, path string) (*lora.File, error)

	state atomic.Int32
	file  atomic.Pointer[lora.File]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	// loading zaehlt laufende open Aufrufe; Terminate wartet nicht darauf
	loading sync.WaitGroup
}

// NewActor erstellt einen Actor und startet seine Empfangs-Schleife
func NewActor(name string) *Actor {
	return newActor(name, func(_ context.Context, path string) (*lora.File, error) {
		return lora.Open(path)
	})
}

func newActor(name string, open func(context.Context, string) (*lora.File, error)) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		name:    name,
		started: time.Now(),
		inbox:   make(chan Request, inboxSize),
		hub:     newHub(),
		sem:     semaphore.NewWeighted(int64(envconfig.MaxConcurrency())),
		open:    open,
		ctx:     ctx,
		cancel:  cancel,
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Name ist der Name, unter dem der Actor registriert ist
func (a *Actor) Name() string {
	return a.name
}

// Started ist der Startzeitpunkt des Actors
func (a *Actor) Started() time.Time {
	return a.started
}

// State gibt den aktuellen Zustand zurueck
func (a *Actor) State() State {
	return State(a.state.Load())
}

// File gibt die geladene Datei zurueck, nil vor dem Laden
func (a *Actor) File() *lora.File {
	return a.file.Load()
}

// Hub gibt den Antwort-Verteiler des Actors zurueck
func (a *Actor) Hub() *Hub {
	return a.hub
}

// Done ist geschlossen sobald der Actor beendet wurde
func (a *Actor) Done() <-chan struct{} {
	return a.ctx.Done()
}

func (a *Actor) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", a.name),
		slog.String("state", a.State().String()),
	}
	if f := a.File(); f != nil {
		attrs = append(attrs, slog.Any("file", f))
	}
	return slog.GroupValue(attrs...)
}

// Post stellt req in die Inbox. Blockiert wenn die Inbox voll ist.
func (a *Actor) Post(ctx context.Context, req Request) error {
	if a.State() == StateTerminated {
		return ErrActorTerminated
	}

	select {
	case a.inbox <- req:
		return nil
	case <-a.ctx.Done():
		return ErrActorTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate beendet den Actor, wartet auf laufende Handler und schliesst die Datei.
// Offene Anfragen bekommen keine Antwort mehr. Ein haengendes Laden blockiert
// Terminate nicht; die Datei wird geschlossen sobald open zurueckkehrt.
func (a *Actor) Terminate() {
	a.once.Do(func() {
		a.state.Store(int32(StateTerminated))
		a.cancel()
		a.hub.Close()
		a.wg.Wait()

		if f := a.file.Swap(nil); f != nil {
			if err := f.Close(); err != nil {
				slog.Warn("closing file", "worker", a.name, "error", err)
			}
		}
		slog.Debug("worker terminated", "worker", a.name)
	})
}

func (a *Actor) run() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case req := <-a.inbox:
			logutil.Trace("worker received", "worker", a.name, "request", req)

			// Laden wird in der Schleife abgewartet, damit spaetere Anfragen den Zustand sehen
			if req.Type == TypeFileUpload {
				a.ingest(req)
				continue
			}

			if err := a.sem.Acquire(a.ctx, 1); err != nil {
				return
			}

			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				defer a.sem.Release(1)
				a.handle(req)
			}()
		}
	}
}

// reply veroeffentlicht resp, aber nur wenn die Anfrage eine Antwort verlangt
func (a *Actor) reply(req Request, resp Response) {
	if !req.Reply {
		return
	}

	resp.CorrelationID = req.CorrelationID
	resp.Name = a.name
	if resp.Type == "" {
		resp.Type = req.Type
	}
	a.hub.Publish(resp)
}

// emit veroeffentlicht eine Nachricht ohne Anfrage-Bezug (Fortschritt, Sentinels)
func (a *Actor) emit(resp Response) {
	resp.Name = a.name
	a.hub.Publish(resp)
}

func (a *Actor) ingest(req Request) {
	if !a.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoading)) {
		a.reply(req, Response{Type: TypeMetadataError, Err: fmt.Errorf("%w: %s", ErrAlreadyLoaded, a.State())})
		return
	}

	slog.Info("loading file", "worker", a.name, "path", req.Path)
	start := time.Now()

	// open beachtet ctx nicht zwingend (z.B. ein FIFO ohne Schreiber), daher
	// laeuft es ausserhalb der Schleife und Terminate wartet nicht darauf
	ch := make(chan opened, 1)
	a.loading.Add(1)
	go func() {
		f, err := a.open(a.ctx, req.Path)
		ch <- opened{f, err}
	}()

	var res opened
	select {
	case res = <-ch:
		a.loading.Done()
	case <-a.ctx.Done():
		go func() {
			defer a.loading.Done()
			a.release(<-ch)
		}()
		return
	}

	f, err := res.f, res.err
	if err != nil {
		// Kein Weg zurueck: ein neuer Versuch bekommt einen neuen Actor
		slog.Warn("loading file failed", "worker", a.name, "error", err)
		a.reply(req, Response{Type: TypeMetadataError, Err: err})
		return
	}

	if a.ctx.Err() != nil {
		f.Close()
		return
	}

	a.file.Store(f)
	a.state.Store(int32(StateReady))
	slog.Info("file loaded", "worker", a.name, "file", f, "duration", time.Since(start))

	a.reply(req, Response{Type: TypeMetadata, Payload: metadataPayload(f)})
}

// opened ist das Ergebnis von open
type opened struct {
	f   *lora.File
	err error
}

// release schliesst eine Datei, deren Laden erst nach Terminate fertig wurde
func (a *Actor) release(res opened) {
	if res.f == nil {
		return
	}
	slog.Debug("closing file loaded after terminate", "worker", a.name, "path", res.f.Path())
	if err := res.f.Close(); err != nil {
		slog.Warn("closing file", "worker", a.name, "error", err)
	}
}

func (a *Actor) handle(req Request) {
	if req.Type == TypeIsAvailable {
		a.reply(req, Response{})
		return
	}

	h, ok := handlers[req.Type]
	if !ok {
		slog.Warn("unknown message type", "worker", a.name, "type", req.Type)
		a.reply(req, Response{Err: fmt.Errorf("%w %q, did you mean %q?", ErrUnknownMessageType, req.Type, closestType(req.Type))})
		return
	}

	f := a.File()
	if f == nil || a.State() != StateReady {
		a.reply(req, Response{Err: fmt.Errorf("%w: %s", ErrNotReady, a.State())})
		return
	}

	payload, err := h(a.ctx, a, f, req)
	if err != nil {
		slog.Debug("request failed", "worker", a.name, "request", req, "error", err)
	}
	a.reply(req, Response{BaseName: req.BaseName, Payload: payload, Err: err})
}
