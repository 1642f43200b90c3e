// bar.go - Fortschrittsbalken fuer gezaehlte Arbeit
// Enthaelt: Bar, NewBar, Set, String

package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

// Bar zeigt current/total als Balken mit Rate und Restzeit
type Bar struct {
	mu sync.Mutex

	message string
	total   int64
	current int64
	initial int64

	started time.Time
	stopped time.Time
}

// NewBar erstellt einen Balken; initial zaehlt nicht in die Rate
func NewBar(message string, total, initial int64) *Bar {
	return &Bar{
		message: message,
		total:   total,
		current: initial,
		initial: initial,
		started: time.Now(),
	}
}

// Set setzt den aktuellen Stand; bei Erreichen von total haelt die Uhr an
func (b *Bar) Set(current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = min(current, b.total)
	if b.current >= b.total && b.stopped.IsZero() {
		b.stopped = time.Now()
	}
}

// Message ersetzt den Text vor dem Balken
func (b *Bar) Message(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = message
}

func (b *Bar) percent() float64 {
	if b.total <= 0 {
		return 0
	}
	return float64(b.current) / float64(b.total) * 100
}

func (b *Bar) elapsed() time.Duration {
	if !b.stopped.IsZero() {
		return b.stopped.Sub(b.started)
	}
	return time.Since(b.started)
}

// rate in Einheiten pro Sekunde seit dem Start
func (b *Bar) rate() float64 {
	elapsed := b.elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(b.current-b.initial) / elapsed
}

func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.render(termWidth())
}

// render baut die Zeile fuer eine Breite von width Zellen
func (b *Bar) render(width int) string {
	var pre strings.Builder
	if b.message != "" {
		// Nachricht auf hoechstens ein Viertel der Breite kuerzen
		msg := runewidth.Truncate(b.message, max(width/4, 8), "...")
		pre.WriteString(runewidth.FillRight(msg, runewidth.StringWidth(msg)+1))
	}
	fmt.Fprintf(&pre, "%3.0f%% ", b.percent())

	var suf strings.Builder
	fmt.Fprintf(&suf, " %d/%d", b.current, b.total)
	if b.stopped.IsZero() {
		if r := b.rate(); r > 0 && b.current > b.initial {
			remaining := time.Duration(float64(b.total-b.current)/r) * time.Second
			fmt.Fprintf(&suf, " %s", remaining.Round(time.Second))
		}
	} else {
		fmt.Fprintf(&suf, " %s", b.elapsed().Round(time.Millisecond))
	}

	barWidth := width - runewidth.StringWidth(pre.String()) - runewidth.StringWidth(suf.String()) - 2
	if barWidth <= 0 {
		return pre.String() + suf.String()
	}

	filled := 0
	if b.total > 0 {
		filled = int(float64(barWidth) * float64(b.current) / float64(b.total))
	}

	var mid strings.Builder
	mid.WriteString("▕")
	mid.WriteString(strings.Repeat("█", filled))
	mid.WriteString(strings.Repeat(" ", barWidth-filled))
	mid.WriteString("▏")

	return pre.String() + mid.String() + suf.String()
}
