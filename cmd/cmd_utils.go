// cmd_utils.go - Hilfsfunktionen der Commands
// Hauptfunktionen: connect, startEmbedded, loadFile, newTable
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/logutil"
	"github.com/lora-inspector/inspector/progress"
	"github.com/lora-inspector/inspector/server"
	"github.com/lora-inspector/inspector/worker"
)

// connect - Verbindet mit dem Server aus LORA_INSPECTOR_HOST. Laeuft dort
// keiner, wird ein eingebetteter Server auf einem freien Port gestartet.
func connect(cmd *cobra.Command) (*api.Client, error) {
	level := slog.LevelWarn
	if envconfig.LogLevel() <= slog.LevelDebug {
		level = envconfig.LogLevel()
	}
	slog.SetDefault(logutil.NewLogger(os.Stderr, level))

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		if !(strings.Contains(err.Error(), " refused") || strings.Contains(err.Error(), "could not connect")) {
			return nil, err
		}

		slog.Debug("no server running, starting embedded server", "host", envconfig.Host())
		client, err = startEmbedded(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("lora-inspector server not responding - %w", err)
		}
	}
	return client, nil
}

// startEmbedded - Startet einen Server im eigenen Prozess. Er lebt bis ctx
// endet oder der Prozess beendet wird.
func startEmbedded(ctx context.Context) (*api.Client, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	// Request-Logs von gin wuerden die Tabellen auf stdout stoeren
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	s := server.New(ln.Addr(), server.OpenCache())
	srvr := &http.Server{Handler: s.GenerateRoutes()}

	go func() {
		if err := srvr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("embedded server", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srvr.Close()
		if err := s.Close(); err != nil {
			slog.Warn("closing stats cache", "error", err)
		}
	}()

	return api.NewClient(&url.URL{Scheme: "http", Host: ln.Addr().String()}, http.DefaultClient), nil
}

// loadFile - Laedt path in einen Worker und gibt dessen Namen zurueck. Ist
// die Datei bereits geladen, wird der vorhandene Worker verwendet.
func loadFile(cmd *cobra.Command, client *api.Client, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(abs); err != nil {
		return "", err
	}

	running, err := client.List(cmd.Context())
	if err != nil {
		return "", err
	}
	for _, f := range running.Files {
		if f.Path == abs && f.State == worker.StateReady.String() {
			slog.Debug("reusing loaded file", "name", f.Name, "path", abs)
			return f.Name, nil
		}
	}

	p := progress.NewProgress(cmd.ErrOrStderr())
	defer p.StopAndClear()

	spinner := progress.NewSpinner(fmt.Sprintf("loading %s", filepath.Base(abs)))
	p.Add("", spinner)

	resp, err := client.Load(cmd.Context(), &api.LoadRequest{Path: abs})
	if err != nil {
		return "", err
	}
	return resp.Name, nil
}

// newTable - Tabelle im Stil von ps und list
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// formatFloat - Kompakte Darstellung einer Metrik
func formatFloat(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
