// spinner.go - Spinner fuer Arbeit ohne bekannte Menge
// Enthaelt: Spinner, NewSpinner, SetMessage, Stop

package progress

import (
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner dreht sich bis Stop aufgerufen wird
type Spinner struct {
	mu      sync.Mutex
	message string
	value   int
	ticker  *time.Ticker
	stopped time.Time
}

// NewSpinner erstellt und startet einen Spinner
func NewSpinner(message string) *Spinner {
	s := &Spinner{message: message, ticker: time.NewTicker(100 * time.Millisecond)}
	go s.start()
	return s
}

// SetMessage ersetzt den Text neben dem Spinner
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) start() {
	for range s.ticker.C {
		s.mu.Lock()
		s.value = (s.value + 1) % len(spinnerFrames)
		done := !s.stopped.IsZero()
		s.mu.Unlock()
		if done {
			return
		}
	}
}

func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	if s.message != "" {
		msg := runewidth.Truncate(strings.TrimSpace(s.message), max(termWidth()-4, 8), "...")
		sb.WriteString(msg)
		sb.WriteString(" ")
	}

	if s.stopped.IsZero() {
		sb.WriteString(spinnerFrames[s.value])
		sb.WriteString(" ")
	}

	return sb.String()
}

// Stop haelt den Spinner an; der letzte Frame verschwindet
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.IsZero() {
		s.stopped = time.Now()
		s.ticker.Stop()
	}
}
