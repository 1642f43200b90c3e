// cmd_compare.go - Compare Command
// Hauptfunktionen: CompareHandler, readMetadata, readMetadataJSON
//
// Beide Seiten sind entweder Safetensors-Dateien oder JSON-Dumps der
// Metadaten (auch UTF-16 mit BOM, wie ihn Windows-Tools schreiben).
package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lora-inspector/inspector/fs/safetensors"
	"github.com/lora-inspector/inspector/metadata"
)

var errNotMetadata = errors.New("not a metadata object")

// CompareHandler - Vergleicht die Metadaten zweier Dateien
func CompareHandler(cmd *cobra.Command, args []string) error {
	var a, b *metadata.Metadata

	var g errgroup.Group
	g.Go(func() (err error) {
		a, err = readMetadata(args[0])
		return err
	})
	g.Go(func() (err error) {
		b, err = readMetadata(args[1])
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	diff := metadata.Compare(a, b)

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	if diff.Empty() {
		fmt.Fprintln(w, "metadata is identical")
		return nil
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	width := maxValueWidth
	if verbose {
		width = 0
	}

	table := newTable(w, "", "KEY", filepath.Base(args[0]), filepath.Base(args[1]))
	for _, c := range diff.Changed {
		table.Append([]string{"~", c.Key, truncate(c.Old, width), truncate(c.New, width)})
	}
	for _, e := range diff.Removed {
		table.Append([]string{"-", e.Key, truncate(e.Value, width), ""})
	}
	for _, e := range diff.Added {
		table.Append([]string{"+", e.Key, "", truncate(e.Value, width)})
	}
	table.Render()
	return nil
}

// readMetadata - Liest __metadata__ einer Safetensors-Datei oder einen
// JSON-Dump
func readMetadata(path string) (*metadata.Metadata, error) {
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		f, err := safetensors.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		return metadata.FromOrdered(f.Metadata()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	md, err := readMetadataJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// readMetadataJSON - Dekodiert ein JSON-Objekt mit String-Werten. Ein
// umschliessendes {"metadata": {...}} wird entfernt, andere Werte werden als
// kompaktes JSON uebernommen.
func readMetadataJSON(r io.Reader) (*metadata.Metadata, error) {
	// UTF-8 ohne BOM bleibt unveraendert, UTF-16 mit BOM wird umgewandelt
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	bts, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(bts, raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errNotMetadata, err)
	}

	if raw.Len() == 1 {
		if inner, ok := raw.Get("metadata"); ok && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
			raw = orderedmap.New[string, json.RawMessage]()
			if err := json.Unmarshal(inner, raw); err != nil {
				return nil, fmt.Errorf("%w: %w", errNotMetadata, err)
			}
		}
	}

	om := orderedmap.New[string, string](orderedmap.WithCapacity[string, string](raw.Len()))
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		var s string
		if err := json.Unmarshal(pair.Value, &s); err == nil {
			om.Set(pair.Key, s)
			continue
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, pair.Value); err != nil {
			return nil, err
		}
		om.Set(pair.Key, buf.String())
	}

	return metadata.FromOrdered(om), nil
}

// truncate - Kuerzt v fuer die Tabelle, width 0 laesst v unveraendert
func truncate(v string, width int) string {
	v = strings.ReplaceAll(v, "\n", " ")
	if width > 0 && runewidth.StringWidth(v) > width {
		return runewidth.Truncate(v, width, "...")
	}
	return v
}

// newCompareCmd - Erstellt den compare Command
func newCompareCmd() *cobra.Command {
	compareCmd := &cobra.Command{
		Use:   "compare A B",
		Short: "Compare the training metadata of two files",
		Long:  "Compare the training metadata of two files. Each side is a .safetensors file or a JSON dump of its metadata.",
		Args:  cobra.ExactArgs(2),
		RunE:  CompareHandler,
	}

	compareCmd.Flags().Bool("json", false, "Print the difference as JSON")
	compareCmd.Flags().Bool("verbose", false, "Show full metadata values")
	return compareCmd
}
