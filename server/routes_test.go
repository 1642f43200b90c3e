package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/lora/loratest"
	"github.com/lora-inspector/inspector/metadata"
	"github.com/lora-inspector/inspector/store"
	"github.com/lora-inspector/inspector/worker"
)

const (
	in00q = "lora_unet_down_blocks_0_attentions_0_transformer_blocks_0_attn1_to_q"
	in00k = "lora_unet_down_blocks_0_attentions_0_transformer_blocks_0_attn1_to_k"
	te05  = "lora_te_text_model_encoder_layers_5_self_attn_q_proj"
	weird = "lora_weird_key"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	s := &Server{registry: worker.NewRegistry()}
	t.Cleanup(s.registry.Close)
	return s, s.GenerateRoutes()
}

func fixture(t *testing.T) string {
	t.Helper()

	var tensors []loratest.Tensor
	for _, b := range []string{in00q, in00k, te05, weird} {
		tensors = append(tensors, loratest.LoRA(b, 2, 3, 2, 1)...)
	}

	return loratest.Write(t, "style.safetensors", map[string]string{
		metadata.KeyNetworkModule: "networks.lora",
		metadata.KeyNetworkDim:    "2",
		metadata.KeyTagFrequency:  `{"1_style": {"cat": 3, "dog": 5}}`,
	}, tensors...)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func load(t *testing.T, h http.Handler) api.LoadResponse {
	t.Helper()

	w := do(t, h, http.MethodPost, "/api/load", api.LoadRequest{Path: fixture(t)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[api.LoadResponse](t, w)
}

// lines teilt eine NDJSON Antwort in ihre Zeilen
func lines(t *testing.T, w *httptest.ResponseRecorder) [][]byte {
	t.Helper()

	var out [][]byte
	sc := bufio.NewScanner(w.Body)
	for sc.Scan() {
		out = append(out, bytes.Clone(sc.Bytes()))
	}
	require.NoError(t, sc.Err())
	return out
}

func TestHeartbeatAndVersion(t *testing.T) {
	_, h := testServer(t)

	w := do(t, h, http.MethodHead, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestLoadShowUnload(t *testing.T) {
	_, h := testServer(t)

	lr := load(t, h)
	assert.Equal(t, "style", lr.Name)
	assert.Equal(t, 12, lr.NumTensors)
	assert.NotEmpty(t, lr.Digest)

	w := do(t, h, http.MethodPost, "/api/show", api.ShowRequest{Name: "style"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	show := decode[api.ShowResponse](t, w)
	assert.Equal(t, "kohya-ss/lora", show.NetworkModule)
	assert.Equal(t, "LoRA", show.NetworkType)
	assert.Equal(t, "kohya", show.Format)
	assert.Equal(t, []int{2}, show.Dims)
	assert.Equal(t, []string{"1"}, show.Alphas)
	assert.Equal(t, api.KeyCounts{Total: 12, UNet: 6, TextEncoder: 3, Weight: 8, Alpha: 4, BaseNames: 4}, show.Keys)
	require.NotEmpty(t, show.TopTags)
	assert.Equal(t, "dog", show.TopTags[0].Tag)
	assert.Equal(t, 3, show.Metadata.Len())

	w = do(t, h, http.MethodGet, "/api/ps", nil)
	ps := decode[api.ProcessResponse](t, w)
	require.Len(t, ps.Files, 1)
	assert.Equal(t, "style", ps.Files[0].Name)
	assert.Equal(t, worker.StateReady.String(), ps.Files[0].State)

	w = do(t, h, http.MethodDelete, "/api/unload", api.UnloadRequest{Name: "style"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/unload", api.UnloadRequest{Name: "style"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/show", api.ShowRequest{Name: "style"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadErrors(t *testing.T) {
	_, h := testServer(t)

	w := do(t, h, http.MethodPost, "/api/load", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/load", api.LoadRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/load", api.LoadRequest{Path: filepath.Join(t.TempDir(), "missing.safetensors")})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestKeys(t *testing.T) {
	_, h := testServer(t)
	load(t, h)

	w := do(t, h, http.MethodPost, "/api/keys", api.KeysRequest{Name: "style", Kind: api.KindBaseNames, Classify: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[api.KeysResponse](t, w)
	assert.Len(t, resp.Keys, 4)
	assert.Len(t, resp.Parsed, 3)
	assert.Equal(t, []string{weird}, resp.Unrecognized)

	families := map[keys.Family]int{}
	for _, pk := range resp.Parsed {
		families[pk.Family]++
	}
	assert.Equal(t, map[keys.Family]int{keys.FamilyUNetSD: 2, keys.FamilyTextEncoder: 1}, families)

	w = do(t, h, http.MethodPost, "/api/keys", api.KeysRequest{Name: "style", Kind: "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsStream(t *testing.T) {
	_, h := testServer(t)
	load(t, h)

	w := do(t, h, http.MethodPost, "/api/stats", api.StatsRequest{
		Name:      "style",
		BaseNames: []string{in00q, "missing"},
		Metrics:   []string{"l2_norm", "max"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	ls := lines(t, w)
	require.Len(t, ls, 3)

	var final api.StatsResponse
	require.NoError(t, json.Unmarshal(ls[2], &final))
	assert.Equal(t, api.StatusSuccess, final.Status)
	require.Len(t, final.Results, 1)
	assert.Equal(t, in00q, final.Results[0].BaseName)
	assert.Contains(t, final.Results[0].Metrics, "max")
	require.Len(t, final.Dropped, 1)
	assert.Equal(t, "missing", final.Dropped[0].BaseName)
}

func TestStatsWithoutStream(t *testing.T) {
	_, h := testServer(t)
	load(t, h)

	stream := false
	w := do(t, h, http.MethodPost, "/api/stats", api.StatsRequest{Name: "style", Stream: &stream})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[api.StatsResponse](t, w)
	assert.Len(t, resp.Results, 4)
	assert.Len(t, resp.Metrics, len(engine.DefaultMetrics))
}

func TestStatsUnknownMetric(t *testing.T) {
	_, h := testServer(t)
	load(t, h)

	w := do(t, h, http.MethodPost, "/api/stats", api.StatsRequest{Name: "style", Metrics: []string{"l2norm"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "l2_norm")
}

func TestStatsCache(t *testing.T) {
	s, h := testServer(t)

	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	s.cache = cache

	load(t, h)

	stream := false
	req := api.StatsRequest{Name: "style", BaseNames: []string{in00q}, Metrics: []string{"l1_norm"}, Stream: &stream}

	first := decode[api.StatsResponse](t, do(t, h, http.MethodPost, "/api/stats", req))
	second := decode[api.StatsResponse](t, do(t, h, http.MethodPost, "/api/stats", req))

	require.Len(t, first.Results, 1)
	require.Len(t, second.Results, 1)
	assert.False(t, first.Results[0].Cached)
	assert.True(t, second.Results[0].Cached)
	assert.InDelta(t, first.Results[0].Metrics["l1_norm"], second.Results[0].Metrics["l1_norm"], 1e-9)

	files, err := cache.Files(t.Context())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "style", files[0].Name)
}

func TestBlocks(t *testing.T) {
	_, h := testServer(t)
	load(t, h)

	w := do(t, h, http.MethodPost, "/api/blocks", api.BlocksRequest{Name: "style"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ls := lines(t, w)
	// ein Fortschritt pro erkanntem Base-Namen, dann das Ergebnis
	require.Len(t, ls, 4)

	var progress api.ProgressResponse
	require.NoError(t, json.Unmarshal(ls[0], &progress))
	assert.Equal(t, 3, progress.Total)

	var final api.BlocksResponse
	require.NoError(t, json.Unmarshal(ls[3], &final))
	assert.Equal(t, []string{weird}, final.Unrecognized)
	require.Len(t, final.Blocks, 2)

	assert.Equal(t, keys.FamilyUNetSD, final.Blocks[0].Family)
	assert.Equal(t, "IN00", final.Blocks[0].Name)
	assert.Equal(t, 2, final.Blocks[0].Count)
	assert.Equal(t, keys.FamilyTextEncoder, final.Blocks[1].Family)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", worker.ErrActorUnavailable), http.StatusNotFound},
		{worker.ErrIngestionTimeout, http.StatusGatewayTimeout},
		{&keys.UnrecognizedKeyError{Key: "x"}, http.StatusUnprocessableEntity},
		{engine.ErrUnknownMetric, http.StatusBadRequest},
		{worker.ErrActorTerminated, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range cases {
		if got := errorStatus(tt.err); got != tt.status {
			t.Errorf("errorStatus(%v) = %d, erwartet %d", tt.err, got, tt.status)
		}
	}
}

func TestAllowedHosts(t *testing.T) {
	s := &Server{registry: worker.NewRegistry(), addr: net127{}}
	t.Cleanup(s.registry.Close)
	h := s.GenerateRoutes()

	for host, status := range map[string]int{
		"localhost:11535":   http.StatusOK,
		"127.0.0.1:11535":   http.StatusOK,
		"box.local":         http.StatusOK,
		"evil.example.com":  http.StatusForbidden,
		"192.168.1.5:11535": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, host)
	}
}

// net127 ist eine Loopback-Adresse fuer die Host-Pruefung
type net127 struct{}

func (net127) Network() string { return "tcp" }
func (net127) String() string  { return "127.0.0.1:11535" }
