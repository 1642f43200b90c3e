// routes_serve.go - Server-Start und Shutdown
// Enthaelt: Serve, OpenCache

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/logutil"
	"github.com/lora-inspector/inspector/store"
	"github.com/lora-inspector/inspector/version"
)

// Serve startet den HTTP-Server auf ln und blockiert bis SIGINT/SIGTERM
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	s := New(ln.Addr(), OpenCache())

	srvr := &http.Server{Handler: s.GenerateRoutes()}

	ctx, done := context.WithCancel(context.Background())

	// bei ctrl+c alle Worker beenden
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		if err := s.Close(); err != nil {
			slog.Warn("closing stats cache", "error", err)
		}
		done()
	}()

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	err := srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return nil
}

// OpenCache oeffnet den Normen-Cache; Fehler deaktivieren nur den Cache
func OpenCache() *store.Store {
	path := envconfig.Cache()
	if path == "" {
		slog.Info("stats cache disabled")
		return nil
	}

	st, err := store.Open(path)
	if err != nil {
		slog.Warn("stats cache unavailable", "path", path, "error", err)
		return nil
	}
	return st
}
