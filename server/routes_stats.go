// routes_stats.go - Handler fuer Statistiken mit Fortschritt
// Enthaelt: StatsHandler, BlocksHandler, blockRows
//
// Beide Handler streamen standardmaessig NDJSON: erst Fortschritts-Zeilen,
// dann eine Ergebnis-Zeile mit Status success.

package server

import (
	"context"
	"net/http"
	"slices"

	"github.com/emirpasic/gods/v2/maps/treemap"
	"github.com/gin-gonic/gin"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/stats"
	"github.com/lora-inspector/inspector/worker"
)

// publisherFunc leitet Fortschritt eines einzelnen Requests weiter
type publisherFunc func(worker.Response)

func (f publisherFunc) Publish(resp worker.Response) { f(resp) }

// sender schreibt in ch bis der Client verschwindet
func sender(ctx context.Context, ch chan<- any) func(any) bool {
	return func(v any) bool {
		select {
		case ch <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

func progressLine(status string, p worker.Progress) api.ProgressResponse {
	return api.ProgressResponse{
		Status:    status,
		BaseName:  p.BaseName,
		Completed: p.CurrentCount,
		Total:     p.TotalCount,
	}
}

func respond(c *gin.Context, stream *bool, ch chan any) {
	if stream != nil && !*stream {
		waitForStream(c, ch)
		return
	}
	streamResponse(c, ch)
}

// StatsHandler berechnet Metriken fuer Base-Namen einer Datei
func (s *Server) StatsHandler(c *gin.Context) {
	var req api.StatsRequest
	if !bindRequest(c, &req) {
		return
	}

	metrics, err := engine.ParseMetrics(req.Metrics)
	if err != nil {
		abortWithError(c, err)
		return
	}

	a, ok := s.actor(c, req.Name)
	if !ok {
		return
	}

	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = string(m)
	}

	ctx := c.Request.Context()
	ch := make(chan any)
	go func() {
		defer close(ch)
		send := sender(ctx, ch)

		bases := req.BaseNames
		if len(bases) == 0 {
			if err := ask(ctx, a, query{worker.TypeBaseNames, assign(&bases)}); err != nil {
				send(errorLine(err))
				return
			}
		}

		agg := stats.NewAggregator(worker.NewCorrelator(a), publisherFunc(func(resp worker.Response) {
			if p, ok := resp.Payload.(worker.Progress); ok {
				send(progressLine("computing norms", p))
			}
		}))
		if f := a.File(); f != nil {
			agg.Digest = f.Digest()
		}
		if s.cache != nil {
			agg.Cache = s.cache
		}

		report := agg.Aggregate(ctx, bases, names...)

		resp := api.StatsResponse{
			Status:  api.StatusSuccess,
			Metrics: names,
			Results: make([]api.StatsResult, len(report.Results)),
		}
		for i, r := range report.Results {
			resp.Results[i] = api.StatsResult{BaseName: r.BaseName, Metrics: r.Metrics, Cached: r.Cached}
		}
		for _, d := range report.Dropped {
			resp.Dropped = append(resp.Dropped, api.StatsDropped{BaseName: d.BaseName, Error: d.Error})
		}
		send(resp)
	}()

	respond(c, req.Stream, ch)
}

// BlocksHandler berechnet die mittlere L2-Norm pro Block
func (s *Server) BlocksHandler(c *gin.Context) {
	var req api.BlocksRequest
	if !bindRequest(c, &req) {
		return
	}

	a, ok := s.actor(c, req.Name)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ch := make(chan any)
	go func() {
		defer close(ch)
		send := sender(ctx, ch)

		stream := a.Hub().Open(worker.TypeL2NormsProgress)
		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for ev := range stream.Events() {
				if p, ok := ev.Payload.(worker.Progress); ok {
					send(progressLine("computing l2 norms", p))
				}
			}
		}()

		resp, err := worker.NewCorrelator(a).Send(ctx, worker.Request{Type: worker.TypeL2Norm})
		stream.Close()
		<-forwarded
		if err != nil {
			send(errorLine(err))
			return
		}

		payload, _ := resp.Payload.(worker.L2NormPayload)
		send(api.BlocksResponse{
			Status:       api.StatusSuccess,
			Blocks:       blockRows(payload),
			Unrecognized: payload.Unrecognized,
			Failed:       payload.Failed,
		})
	}()

	respond(c, req.Stream, ch)
}

// blockRows sortiert die Bloecke nach Familie, ChartIndex und Name
func blockRows(p worker.L2NormPayload) []api.Block {
	type rowKey struct {
		family keys.Family
		chart  int
		name   string
	}

	rows := treemap.NewWith[rowKey, api.Block](func(a, b rowKey) int {
		switch {
		case a.family != b.family:
			return int(a.family) - int(b.family)
		case a.chart != b.chart:
			return a.chart - b.chart
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})

	for family, blocks := range p.Norms {
		f, err := keys.ParseFamily(family)
		if err != nil {
			continue
		}

		for name, b := range blocks {
			rows.Put(rowKey{f, b.Metadata.ChartIndex, name}, api.Block{
				Family:     f,
				Name:       name,
				Type:       b.Metadata.Type,
				BlockType:  b.Metadata.BlockType,
				BlockID:    b.Metadata.BlockID,
				ChartIndex: b.Metadata.ChartIndex,
				Mean:       b.Mean,
				Count:      b.Count,
			})
		}
	}

	return slices.Collect(func(yield func(api.Block) bool) {
		it := rows.Iterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	})
}
