package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lora-inspector/inspector/lora"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	_, err := r.Get("a")
	require.ErrorIs(t, err, ErrActorUnavailable)

	a, md, err := r.Add(t.Context(), "a", fixture(t, in00q))
	require.NoError(t, err)
	assert.Equal(t, StateReady, a.State())
	assert.Equal(t, 3, md.NumTensors)
	assert.NotEmpty(t, md.Digest)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	// gleicher Name ersetzt und beendet den alten Actor
	b, _, err := r.Add(t.Context(), "a", fixture(t, in01))
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, StateTerminated, a.State())

	_, _, err = r.Add(t.Context(), "c", fixture(t, te05))
	require.NoError(t, err)

	names := []string{}
	for _, x := range r.List() {
		names = append(names, x.Name())
	}
	assert.Equal(t, []string{"a", "c"}, names)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, StateTerminated, b.State())

	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrActorUnavailable)
}

func TestRegistryLoadError(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	_, _, err := r.Add(t.Context(), "broken", "/does/not/exist.safetensors")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIngestionTimeout))

	_, err = r.Get("broken")
	assert.ErrorIs(t, err, ErrActorUnavailable)
}

func TestRegistryIngestionTimeout(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	var created *Actor
	r.loadTimeout = 100 * time.Millisecond
	r.newActorFn = func(name string) *Actor {
		created = newActor(name, func(ctx context.Context, _ string) (*lora.File, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		return created
	}

	start := time.Now()
	_, _, err := r.Add(t.Context(), "slow", "x")
	require.ErrorIs(t, err, ErrIngestionTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	// der haengende Actor wurde beendet und nicht registriert
	assert.Equal(t, StateTerminated, created.State())
	_, err = r.Get("slow")
	assert.ErrorIs(t, err, ErrActorUnavailable)
}

func TestRegistryIngestionTimeoutOpenIgnoresContext(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	path := fixture(t, in00q)
	unblock := make(chan struct{})

	var created *Actor
	var late *lora.File
	r.loadTimeout = 100 * time.Millisecond
	r.newActorFn = func(name string) *Actor {
		created = newActor(name, func(_ context.Context, p string) (*lora.File, error) {
			<-unblock
			f, err := lora.Open(p)
			late = f
			return f, err
		})
		return created
	}

	start := time.Now()
	_, _, err := r.Add(t.Context(), "stuck", path)
	close(unblock)
	require.ErrorIs(t, err, ErrIngestionTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateTerminated, created.State())

	_, err = r.Get("stuck")
	assert.ErrorIs(t, err, ErrActorUnavailable)

	// die verspaetet geoeffnete Datei wird wieder geschlossen
	created.loading.Wait()
	require.NotNil(t, late)
	assert.ErrorIs(t, late.Close(), os.ErrClosed)
	assert.Nil(t, created.File())
}

func TestRegistryCallerCancel(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	r.newActorFn = func(name string) *Actor {
		return newActor(name, func(ctx context.Context, _ string) (*lora.File, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, _, err := r.Add(ctx, "slow", "x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrIngestionTimeout))
}
