// cmd_stats.go - Stats Command
// Hauptfunktionen: StatsHandler, withProgress
package cmd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/progress"
)

// withProgress - Zeigt einen Fortschrittsbalken auf stderr solange fn laeuft
func withProgress(cmd *cobra.Command, fn func(api.ProgressFunc) error) error {
	p := progress.NewProgress(cmd.ErrOrStderr())
	defer p.StopAndClear()

	var bar *progress.Bar
	return fn(func(resp api.ProgressResponse) error {
		if bar == nil {
			bar = progress.NewBar(resp.Status, int64(resp.Total), 0)
			p.Add(resp.Status, bar)
		}
		bar.Set(int64(resp.Completed))
		return nil
	})
}

// StatsHandler - Tabelle der Metriken pro Base-Name
func StatsHandler(cmd *cobra.Command, args []string) error {
	bases, _ := cmd.Flags().GetStringSlice("base-name")
	metrics, _ := cmd.Flags().GetStringSlice("metric")
	sortBy, _ := cmd.Flags().GetString("sort")
	asJSON, _ := cmd.Flags().GetBool("json")

	if sortBy != "" && len(metrics) > 0 && !slices.Contains(metrics, sortBy) {
		metrics = append(metrics, sortBy)
	}

	client, err := connect(cmd)
	if err != nil {
		return err
	}

	name, err := loadFile(cmd, client, args[0])
	if err != nil {
		return err
	}

	var resp *api.StatsResponse
	err = withProgress(cmd, func(fn api.ProgressFunc) (err error) {
		resp, err = client.Stats(cmd.Context(), &api.StatsRequest{Name: name, BaseNames: bases, Metrics: metrics}, fn)
		return err
	})
	if err != nil {
		return err
	}

	if sortBy != "" {
		if !slices.Contains(resp.Metrics, sortBy) {
			return fmt.Errorf("cannot sort by %q, it was not computed", sortBy)
		}
		slices.SortStableFunc(resp.Results, func(a, b api.StatsResult) int {
			return cmp.Compare(b.Metrics[sortBy], a.Metrics[sortBy])
		})
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	table := newTable(cmd.OutOrStdout(), append([]string{"BASE NAME"}, resp.Metrics...)...)
	for _, r := range resp.Results {
		row := []string{r.BaseName}
		for _, m := range resp.Metrics {
			v, ok := r.Metrics[m]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, formatFloat(v))
		}
		table.Append(row)
	}
	table.Render()

	if len(resp.Dropped) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWarning: %d of %d base names dropped\n", len(resp.Dropped), len(resp.Dropped)+len(resp.Results))
		for _, d := range resp.Dropped {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", d.BaseName, d.Error)
		}
	}
	return nil
}

// newStatsCmd - Erstellt den stats Command
func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats FILE",
		Short: "Compute norms and statistics per base name",
		Args:  cobra.ExactArgs(1),
		RunE:  StatsHandler,
	}

	statsCmd.Flags().StringSlice("base-name", nil, "Base names to compute (default all)")
	statsCmd.Flags().StringSlice("metric", nil, "Metrics to compute (l1_norm, l2_norm, matrix_norm, min, max, median, std_dev)")
	statsCmd.Flags().String("sort", "", "Sort rows by this metric, largest first")
	statsCmd.Flags().Bool("json", false, "Print the result as JSON")
	return statsCmd
}
