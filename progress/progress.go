// Package progress - Fortschrittsanzeige auf dem Terminal
//
// Dieses Modul enthaelt:
// - Progress: Zeichnet mehrere States periodisch neu
// - State: Interface fuer Bar und Spinner
//
// Ist die Ausgabe kein Terminal, wird nur der letzte Zustand beim Stop
// geschrieben.
package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// State ist ein darstellbarer Fortschritts-Zustand
type State interface {
	String() string
}

// Progress verwaltet die Zeilen einer Fortschrittsanzeige
type Progress struct {
	mu sync.Mutex
	w  io.Writer

	pos    int
	states []State
	tty    bool

	ticker  *time.Ticker
	stopped bool
}

// NewProgress erstellt eine Anzeige die auf w zeichnet
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w, tty: isTerminal(w)}
	if p.tty {
		go p.start()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termWidth gibt die Breite des Terminals zurueck, 80 wenn unbekannt
func termWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// Add fuegt einen State als neue Zeile hinzu
func (p *Progress) Add(_ string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

// Stop beendet das Neuzeichnen und laesst die letzte Ausgabe stehen
func (p *Progress) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}

	for _, state := range p.states {
		if s, ok := state.(interface{ Stop() }); ok {
			s.Stop()
		}
	}

	p.stopped = true
	if p.ticker != nil {
		p.ticker.Stop()
	}

	p.render()
	if p.pos > 0 {
		fmt.Fprintln(p.w)
	}
	return true
}

// StopAndClear beendet die Anzeige und loescht ihre Zeilen
func (p *Progress) StopAndClear() bool {
	p.mu.Lock()
	stopped := p.stopped
	if !stopped && p.ticker != nil {
		p.ticker.Stop()
	}
	for _, state := range p.states {
		if s, ok := state.(interface{ Stop() }); ok && !stopped {
			s.Stop()
		}
	}
	p.stopped = true

	if !stopped && p.tty {
		// zurueck an den Anfang und alles darunter loeschen
		fmt.Fprint(p.w, "\033[?25l")
		for i := 0; i < p.pos; i++ {
			if i > 0 {
				fmt.Fprint(p.w, "\033[A")
			}
			fmt.Fprint(p.w, "\033[2K\033[1G")
		}
		fmt.Fprint(p.w, "\033[?25h")
	}
	p.pos = 0
	p.mu.Unlock()

	return !stopped
}

func (p *Progress) start() {
	p.mu.Lock()
	p.ticker = time.NewTicker(100 * time.Millisecond)
	ticker := p.ticker
	p.mu.Unlock()

	for range ticker.C {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		p.render()
		p.mu.Unlock()
	}
}

// render zeichnet alle States neu; p.mu muss gehalten werden
func (p *Progress) render() {
	if !p.tty && !p.stopped {
		return
	}

	w := bufio.NewWriter(p.w)
	defer w.Flush()

	if p.tty {
		// Cursor verstecken waehrend gezeichnet wird
		fmt.Fprint(w, "\033[?25l")
		defer fmt.Fprint(w, "\033[?25h")

		// zurueck zum Anfang der Anzeige
		for i := 1; i < p.pos; i++ {
			fmt.Fprint(w, "\033[A")
		}
		fmt.Fprint(w, "\033[1G")
	}

	for i, state := range p.states {
		if i > 0 {
			fmt.Fprint(w, "\n")
		}
		fmt.Fprint(w, state.String())
		if p.tty {
			fmt.Fprint(w, "\033[K")
		}
	}

	p.pos = len(p.states)
}
