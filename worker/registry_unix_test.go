//go:build unix

package worker

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIngestionTimeoutFIFO(t *testing.T) {
	// os.Open auf einem FIFO ohne Schreiber blockiert
	path := filepath.Join(t.TempDir(), "fifo.safetensors")
	require.NoError(t, syscall.Mkfifo(path, 0o600))

	r := NewRegistry()
	defer r.Close()
	r.loadTimeout = 100 * time.Millisecond

	var created *Actor
	r.newActorFn = func(name string) *Actor {
		created = NewActor(name)
		return created
	}

	start := time.Now()
	_, _, err := r.Add(t.Context(), "fifo", path)
	require.ErrorIs(t, err, ErrIngestionTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateTerminated, created.State())

	// Schreiber oeffnen und schliessen, damit das haengende Open mit EOF endet
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	created.loading.Wait()
}
