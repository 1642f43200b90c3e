// cmd_blocks.go - Blocks Command
// Hauptfunktionen: BlocksHandler, renderBars
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/v2/maps/treemap"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/keys"
)

var blockFormats = []string{"table", "json", "bars"}

// BlocksHandler - Mittlere L2-Norm pro Block
func BlocksHandler(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !slices.Contains(blockFormats, format) {
		return fmt.Errorf("unknown format %q, expected one of %s", format, strings.Join(blockFormats, ", "))
	}

	client, err := connect(cmd)
	if err != nil {
		return err
	}

	name, err := loadFile(cmd, client, args[0])
	if err != nil {
		return err
	}

	var resp *api.BlocksResponse
	err = withProgress(cmd, func(fn api.ProgressFunc) (err error) {
		resp, err = client.Blocks(cmd.Context(), &api.BlocksRequest{Name: name}, fn)
		return err
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "bars":
		renderBars(w, resp.Blocks, outputWidth(w))
	default:
		table := newTable(w, "FAMILY", "BLOCK", "TYPE", "ID", "KEYS", "MEAN L2")
		for _, b := range resp.Blocks {
			table.Append([]string{
				b.Family.String(),
				b.Name,
				b.Type,
				blockID(b.BlockID),
				strconv.Itoa(b.Count),
				formatFloat(b.Mean),
			})
		}
		table.Render()
	}

	if n := len(resp.Unrecognized); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d unrecognized base names were skipped\n", n)
	}
	if n := len(resp.Failed); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d base names failed: %s\n", n, strings.Join(resp.Failed, ", "))
	}
	return nil
}

// outputWidth - Terminal-Breite von w, 80 wenn w kein Terminal ist
func outputWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}

// renderBars - Ein ASCII-Balken pro Block, je Familie auf das Maximum der
// Familie normiert
func renderBars(w io.Writer, blocks []api.Block, width int) {
	byFamily := treemap.New[keys.Family, []api.Block]()
	for _, b := range blocks {
		group, _ := byFamily.Get(b.Family)
		byFamily.Put(b.Family, append(group, b))
	}

	it := byFamily.Iterator()
	for it.Next() {
		group := it.Value()

		label, peak := 0, 0.0
		for _, b := range group {
			label = max(label, runewidth.StringWidth(b.Name))
			peak = max(peak, b.Mean)
		}

		fmt.Fprintln(w, it.Key())
		for _, b := range group {
			value := formatFloat(b.Mean)
			room := max(width-label-runewidth.StringWidth(value)-6, 1)

			n := 0
			if peak > 0 {
				n = int(b.Mean / peak * float64(room))
			}
			fmt.Fprintf(w, "  %s ▕%s%s▏ %s\n",
				runewidth.FillRight(b.Name, label),
				strings.Repeat("█", n),
				strings.Repeat(" ", room-n),
				value)
		}
		fmt.Fprintln(w)
	}
}

// newBlocksCmd - Erstellt den blocks Command
func newBlocksCmd() *cobra.Command {
	blocksCmd := &cobra.Command{
		Use:   "blocks FILE",
		Short: "Show the mean L2 norm per block",
		Args:  cobra.ExactArgs(1),
		RunE:  BlocksHandler,
	}

	blocksCmd.Flags().String("format", "table", "Output format ("+strings.Join(blockFormats, ", ")+")")
	return blocksCmd
}
