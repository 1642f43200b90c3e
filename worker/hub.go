// hub.go - Verteilung der Actor-Antworten an wartende Aufrufer
//
// Hauptfunktionen:
// - Hub: Listener-Verwaltung fuer einen Actor
// - Publish: Verteilt eine Antwort an passende Listener
// - Open: Registriert einen Fortschritts-Stream
//
// Einmal-Listener (Correlator) werden beim ersten Treffer entfernt, damit
// jede Anfrage hoechstens eine Antwort bekommt.

package worker

import (
	"sync"

	"github.com/lora-inspector/inspector/logutil"
)

// progressBuffer ist die Kapazitaet eines Fortschritts-Streams
const progressBuffer = 16

type listener struct {
	match func(Response) bool
	ch    chan Response
}

// Hub verteilt Antworten eines Actors
type Hub struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]*listener
	streams   map[uint64]*ProgressStream

	done      chan struct{}
	closeOnce sync.Once
}

func newHub() *Hub {
	return &Hub{
		listeners: make(map[uint64]*listener),
		streams:   make(map[uint64]*ProgressStream),
		done:      make(chan struct{}),
	}
}

// Done ist geschlossen sobald der Hub geschlossen wurde
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// once registriert einen Einmal-Listener
func (h *Hub) once(match func(Response) bool) (uint64, <-chan Response) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	l := &listener{match: match, ch: make(chan Response, 1)}
	h.listeners[h.nextID] = l
	return h.nextID, l.ch
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
	delete(h.streams, id)
}

// Publish verteilt resp. Ein Einmal-Listener bekommt die Antwort und wird
// entfernt; Streams bekommen sie in Publish-Reihenfolge.
func (h *Hub) Publish(resp Response) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return
	default:
	}

	var hit *listener
	for id, l := range h.listeners {
		if l.match(resp) {
			hit = l
			delete(h.listeners, id)
			break
		}
	}

	var streams []*ProgressStream
	for _, s := range h.streams {
		if s.accepts(resp.Type) {
			streams = append(streams, s)
		}
	}
	h.mu.Unlock()

	if hit != nil {
		hit.ch <- resp
	}

	for _, s := range streams {
		s.deliver(resp)
	}

	if hit == nil && len(streams) == 0 {
		logutil.Trace("response without listener", "type", resp.Type, "id", resp.CorrelationID)
	}
}

// Open registriert einen neuen Fortschritts-Stream fuer progressType.
// Jeder Aufruf bekommt eine eigene Registrierung.
func (h *Hub) Open(progressType string) *ProgressStream {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &ProgressStream{
		id:       h.nextID,
		hub:      h,
		progress: progressType,
		events:   make(chan Response, progressBuffer),
		closed:   make(chan struct{}),
	}

	select {
	case <-h.done:
		s.finish()
	default:
		h.streams[s.id] = s
	}
	return s
}

// Close beendet alle Streams; wartende Einmal-Listener sehen Done
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.done)
		streams := make([]*ProgressStream, 0, len(h.streams))
		for _, s := range h.streams {
			streams = append(streams, s)
		}
		clear(h.listeners)
		clear(h.streams)
		h.mu.Unlock()

		for _, s := range streams {
			s.Close()
		}
	})
}

// ProgressStream liefert Fortschritts-Nachrichten bis zum finished-Sentinel
type ProgressStream struct {
	id       uint64
	hub      *Hub
	progress string

	mu       sync.Mutex
	finished bool
	events   chan Response

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *ProgressStream) accepts(t string) bool {
	return t == s.progress || t == Finished(s.progress)
}

// Events liefert die Fortschritts-Nachrichten; der Kanal wird nach dem
// Sentinel oder nach Close geschlossen
func (s *ProgressStream) Events() <-chan Response {
	return s.events
}

// deliver blockiert solange der Puffer voll ist (Backpressure fuer den Erzeuger)
func (s *ProgressStream) deliver(resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}

	if resp.Type == Finished(s.progress) {
		s.finish()
		s.hub.remove(s.id)
		return
	}

	select {
	case s.events <- resp:
	case <-s.closed:
	}
}

// finish schliesst events; s.mu muss gehalten werden oder s ist noch privat
func (s *ProgressStream) finish() {
	if !s.finished {
		s.finished = true
		close(s.events)
	}
}

// Close meldet den Stream ab, auch vor dem Sentinel
func (s *ProgressStream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	s.finish()
	s.mu.Unlock()

	s.hub.remove(s.id)
}
