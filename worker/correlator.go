// correlator.go - Request/Response Korrelation ueber eine Correlation-ID

package worker

import (
	"context"

	"github.com/google/uuid"
)

// Correlator macht aus Einmal-Nachrichten abwartbare Aufrufe
type Correlator struct {
	actor *Actor
}

// NewCorrelator erstellt einen Correlator fuer a
func NewCorrelator(a *Actor) *Correlator {
	return &Correlator{actor: a}
}

// Send schickt req mit Reply und einer neuen Correlation-ID und wartet auf
// genau eine passende Antwort. Neben Typ und ID muessen alle in matchFields
// genannten Felder (z.B. "baseName") zwischen Anfrage und Antwort gleich sein.
//
// Es gibt kein eingebautes Timeout; ctx begrenzt die Wartezeit.
func (c *Correlator) Send(ctx context.Context, req Request, matchFields ...string) (Response, error) {
	req.Reply = true
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	id, ch := c.actor.hub.once(matcher(req, matchFields))

	if err := c.actor.Post(ctx, req); err != nil {
		c.actor.hub.remove(id)
		return Response{}, err
	}

	select {
	case resp := <-ch:
		return resp, resp.Err
	case <-ctx.Done():
		c.actor.hub.remove(id)
		return Response{}, ctx.Err()
	case <-c.actor.hub.Done():
		// eine Antwort kann noch vor dem Beenden angekommen sein
		select {
		case resp := <-ch:
			return resp, resp.Err
		default:
			return Response{}, ErrActorTerminated
		}
	}
}

// matcher prueft Typ, Correlation-ID und alle matchFields einer Antwort
func matcher(req Request, matchFields []string) func(Response) bool {
	return func(resp Response) bool {
		if resp.CorrelationID != req.CorrelationID || !answers(req.Type, resp.Type) {
			return false
		}

		for _, name := range matchFields {
			want, ok := req.field(name)
			if !ok {
				return false
			}
			if got, _ := resp.field(name); got != want {
				return false
			}
		}
		return true
	}
}
