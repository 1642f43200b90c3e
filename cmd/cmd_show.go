// cmd_show.go - Show Command
// Hauptfunktionen: ShowHandler, showInfo
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/metadata"
)

// maxValueWidth begrenzt lange Metadaten-Werte ohne --verbose
const maxValueWidth = 60

// ShowHandler - Zeigt Netzwerk, Keys und Datensatz einer Datei
func ShowHandler(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}

	name, err := loadFile(cmd, client, args[0])
	if err != nil {
		return err
	}

	resp, err := client.Show(cmd.Context(), &api.ShowRequest{Name: name})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	return showInfo(resp, verbose, cmd.OutOrStdout())
}

// showInfo - Gibt die Zusammenfassung abschnittsweise als Tabellen aus
func showInfo(resp *api.ShowResponse, verbose bool, w io.Writer) error {
	tableRender := func(header string, rows func() [][]string) {
		data := rows()
		if len(data) == 0 {
			return
		}

		fmt.Fprintln(w, " ", header)
		table := newTable(w)
		table.AppendBulk(data)
		table.Render()
		fmt.Fprintln(w)
	}

	tableRender("Network", func() (rows [][]string) {
		rows = append(rows, []string{"", "format", resp.Format})
		if resp.NetworkModule != "" {
			rows = append(rows, []string{"", "module", resp.NetworkModule})
		}
		rows = append(rows, []string{"", "type", resp.NetworkType})

		if args := resp.NetworkArgs; args != nil {
			if args.Algo != "" {
				rows = append(rows, []string{"", "algo", args.Algo})
			}
			if args.Preset != "" {
				rows = append(rows, []string{"", "preset", args.Preset})
			}
			if args.ConvDim != nil {
				rows = append(rows, []string{"", "conv dim", strconv.Itoa(int(*args.ConvDim))})
			}
		}

		if resp.Precision != "" {
			rows = append(rows, []string{"", "precision", resp.Precision})
		}
		if len(resp.Dims) > 0 {
			dims := make([]string, len(resp.Dims))
			for i, d := range resp.Dims {
				dims[i] = strconv.Itoa(d)
			}
			rows = append(rows, []string{"", "dims", strings.Join(dims, ", ")})
		}
		if len(resp.Alphas) > 0 {
			rows = append(rows, []string{"", "alphas", strings.Join(resp.Alphas, ", ")})
		}
		if resp.WeightDecomposition != "" {
			rows = append(rows, []string{"", "weight decomposition", resp.WeightDecomposition})
		}
		if resp.RankStabilized {
			rows = append(rows, []string{"", "rank stabilized", "yes"})
		}
		return
	})

	tableRender("Keys", func() (rows [][]string) {
		k := resp.Keys
		return [][]string{
			{"", "total", strconv.Itoa(k.Total)},
			{"", "unet", strconv.Itoa(k.UNet)},
			{"", "text encoder", strconv.Itoa(k.TextEncoder)},
			{"", "weights", strconv.Itoa(k.Weight)},
			{"", "alphas", strconv.Itoa(k.Alpha)},
			{"", "base names", strconv.Itoa(k.BaseNames)},
		}
	})

	tableRender("Dataset", func() (rows [][]string) {
		for _, dir := range slices.Sorted(maps.Keys(resp.DatasetDirs)) {
			d := resp.DatasetDirs[dir]
			rows = append(rows, []string{"", dir, fmt.Sprintf("%d images", d.ImgCount), fmt.Sprintf("%d repeats", d.Repeats)})
		}
		return
	})

	tableRender("Tags", func() (rows [][]string) {
		for _, tc := range resp.TopTags {
			rows = append(rows, []string{"", tc.Tag, strconv.Itoa(tc.Count)})
		}
		return
	})

	width := maxValueWidth
	if verbose {
		width = 0
	}
	tableRender("Metadata", func() [][]string {
		return metadataRows(resp.Metadata, width)
	})

	return nil
}

// metadataRows - Eine Zeile pro Metadaten-Eintrag in Datei-Reihenfolge,
// Werte werden bei width > 0 gekuerzt
func metadataRows(md *metadata.Metadata, width int) (rows [][]string) {
	if md == nil {
		return nil
	}

	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		rows = append(rows, []string{"", k, truncate(v, width)})
	}
	return rows
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show network, keys and dataset of a LoRA file",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}

	showCmd.Flags().Bool("verbose", false, "Show full metadata values")
	showCmd.Flags().Bool("json", false, "Print the summary as JSON")
	return showCmd
}
