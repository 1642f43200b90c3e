// routes_files.go - Handler fuer geladene Dateien
// Enthaelt: LoadHandler, UnloadHandler, PsHandler, ShowHandler, KeysHandler

package server

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/lora"
	"github.com/lora-inspector/inspector/metadata"
	"github.com/lora-inspector/inspector/worker"
)

// LoadHandler startet einen Worker und wartet auf die Ingestion
func (s *Server) LoadHandler(c *gin.Context) {
	var req api.LoadRequest
	if !bindRequest(c, &req) {
		return
	}

	if req.Path == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	if req.Name == "" {
		req.Name = strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	}

	_, md, err := s.registry.Add(c.Request.Context(), req.Name, req.Path)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Touch(c.Request.Context(), md.Digest, req.Name, md.Size); err != nil {
			// der Cache ist optional
			_ = c.Error(err)
		}
	}

	c.JSON(http.StatusOK, api.LoadResponse{
		Name:       req.Name,
		Digest:     md.Digest,
		Size:       md.Size,
		NumTensors: md.NumTensors,
		Metadata:   md.Metadata,
	})
}

// UnloadHandler beendet den Worker einer Datei
func (s *Server) UnloadHandler(c *gin.Context) {
	var req api.UnloadRequest
	if !bindRequest(c, &req) {
		return
	}

	if !s.registry.Remove(req.Name) {
		abortWithError(c, fmt.Errorf("%w: %s", worker.ErrActorUnavailable, req.Name))
		return
	}

	c.Status(http.StatusOK)
}

// PsHandler listet alle geladenen Worker
func (s *Server) PsHandler(c *gin.Context) {
	files := []api.ProcessFile{}
	for _, a := range s.registry.List() {
		pf := api.ProcessFile{
			Name:     a.Name(),
			State:    a.State().String(),
			LoadedAt: a.Started(),
		}

		if f := a.File(); f != nil {
			pf.Path = f.Path()
			pf.Digest = f.Digest()
			pf.Size = f.Size()
			pf.NumTensors = len(f.Keys())
		}

		files = append(files, pf)
	}

	slices.SortStableFunc(files, func(a, b api.ProcessFile) int {
		return cmp.Compare(b.LoadedAt.UnixNano(), a.LoadedAt.UnixNano())
	})

	c.JSON(http.StatusOK, api.ProcessResponse{Files: files})
}

// actor liest den Worker fuer name und bricht mit 404 ab wenn es keinen gibt
func (s *Server) actor(c *gin.Context, name string) (*worker.Actor, bool) {
	if name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return nil, false
	}

	a, err := s.registry.Get(name)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return a, true
}

// query ist eine Abfrage an den Worker und das Ziel ihrer Nutzlast
type query struct {
	typ   string
	apply func(payload any)
}

// ask schickt alle Abfragen parallel an den Worker
func ask(ctx context.Context, a *worker.Actor, queries ...query) error {
	corr := worker.NewCorrelator(a)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			resp, err := corr.Send(ctx, worker.Request{Type: q.typ})
			if err != nil {
				return fmt.Errorf("%s: %w", q.typ, err)
			}

			mu.Lock()
			defer mu.Unlock()
			q.apply(resp.Payload)
			return nil
		})
	}
	return g.Wait()
}

func assign[T any](dst *T) func(any) {
	return func(v any) {
		if t, ok := v.(T); ok {
			*dst = t
		}
	}
}

func count(dst *int) func(any) {
	return func(v any) {
		if ks, ok := v.([]string); ok {
			*dst = len(ks)
		}
	}
}

// ShowHandler fasst Netzwerk, Gewichte und Metadaten einer Datei zusammen
func (s *Server) ShowHandler(c *gin.Context) {
	var req api.ShowRequest
	if !bindRequest(c, &req) {
		return
	}

	a, ok := s.actor(c, req.Name)
	if !ok {
		return
	}

	var (
		resp   = api.ShowResponse{Name: req.Name}
		alphas []lora.Alpha
		module string
		typ    string
		md     worker.MetadataPayload
	)

	err := ask(c.Request.Context(), a,
		query{worker.TypeMetadata, assign(&md)},
		query{worker.TypeNetworkModule, assign(&module)},
		query{worker.TypeNetworkType, assign(&typ)},
		query{worker.TypeNetworkArgs, assign(&resp.NetworkArgs)},
		query{worker.TypePrecision, assign(&resp.Precision)},
		query{worker.TypeDims, assign(&resp.Dims)},
		query{worker.TypeAlphas, assign(&alphas)},
		query{worker.TypeWeightDecomposition, assign(&resp.WeightDecomposition)},
		query{worker.TypeRankStabilized, assign(&resp.RankStabilized)},
		query{worker.TypeKeys, count(&resp.Keys.Total)},
		query{worker.TypeUNetKeys, count(&resp.Keys.UNet)},
		query{worker.TypeTextEncoderKeys, count(&resp.Keys.TextEncoder)},
		query{worker.TypeWeightKeys, count(&resp.Keys.Weight)},
		query{worker.TypeAlphaKeys, count(&resp.Keys.Alpha)},
		query{worker.TypeBaseNames, count(&resp.Keys.BaseNames)},
	)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp.NetworkModule = module
	resp.NetworkType = typ
	resp.Metadata = md.Metadata
	if f := a.File(); f != nil {
		resp.Format = string(f.Format())
	}

	resp.Alphas = make([]string, len(alphas))
	for i, alpha := range alphas {
		resp.Alphas[i] = alpha.String()
	}

	if md.Metadata != nil {
		resp.TopTags = md.Metadata.TopTags(10)
		resp.DatasetDirs = md.Metadata.DatasetDirs()
	} else {
		resp.Metadata = metadata.Parse(nil)
	}

	c.JSON(http.StatusOK, resp)
}

var kindTypes = map[string]string{
	api.KindAll:         worker.TypeKeys,
	api.KindUNet:        worker.TypeUNetKeys,
	api.KindTextEncoder: worker.TypeTextEncoderKeys,
	api.KindWeight:      worker.TypeWeightKeys,
	api.KindAlpha:       worker.TypeAlphaKeys,
	api.KindBaseNames:   worker.TypeBaseNames,
}

// KeysHandler listet die Keys einer Art, optional klassifiziert
func (s *Server) KeysHandler(c *gin.Context) {
	var req api.KeysRequest
	if !bindRequest(c, &req) {
		return
	}

	if req.Kind == "" {
		req.Kind = api.KindAll
	}

	typ, ok := kindTypes[req.Kind]
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown kind %q, expected one of %s", req.Kind, strings.Join(api.Kinds, ", "))})
		return
	}

	a, ok := s.actor(c, req.Name)
	if !ok {
		return
	}

	resp := api.KeysResponse{Kind: req.Kind, Keys: []string{}}
	if err := ask(c.Request.Context(), a, query{typ, assign(&resp.Keys)}); err != nil {
		abortWithError(c, err)
		return
	}

	if req.Classify {
		// Gewichts-Keys werden ueber ihren Base-Namen klassifiziert
		seen := map[string]bool{}
		for _, k := range resp.Keys {
			base := keys.BaseName(k)
			if seen[base] {
				continue
			}
			seen[base] = true

			pk, err := keys.Classify(base)
			if err != nil {
				resp.Unrecognized = append(resp.Unrecognized, base)
				continue
			}
			resp.Parsed = append(resp.Parsed, pk)
		}
	}

	c.JSON(http.StatusOK, resp)
}
