// cmd_list.go - PS und Unload Commands
// Hauptfunktionen: ListRunningHandler, UnloadHandler
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/format"
)

// shortDigest - Die ersten 12 Zeichen des Digests ohne Algorithmus-Praefix
func shortDigest(digest string) string {
	_, hex, ok := strings.Cut(digest, ":")
	if !ok {
		hex = digest
	}
	if len(hex) > 12 {
		hex = hex[:12]
	}
	return hex
}

// ListRunningHandler - Listet alle geladenen Dateien
func ListRunningHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	running, err := client.List(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, f := range running.Files {
		if len(args) == 0 || strings.HasPrefix(f.Name, args[0]) {
			data = append(data, []string{
				f.Name,
				shortDigest(f.Digest),
				format.HumanBytes(f.Size),
				strconv.Itoa(f.NumTensors),
				f.State,
				format.HumanTime(f.LoadedAt, "Never"),
			})
		}
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "ID", "SIZE", "TENSORS", "STATE", "LOADED")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// UnloadHandler - Beendet die Worker der angegebenen Dateien
func UnloadHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	for _, name := range args {
		if err := client.Unload(cmd.Context(), &api.UnloadRequest{Name: name}); err != nil {
			return fmt.Errorf("unload %s: %w", name, err)
		}
	}
	return nil
}

// checkServerHeartbeat - Prueft ob ein Server laeuft; ps und unload starten
// keinen eingebetteten Server, der waere leer
func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}
	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("lora-inspector server not responding - %w", err)
	}
	return nil
}

// newPsCmd - Erstellt den ps Command
func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ps [PREFIX]",
		Short:   "List loaded files",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ListRunningHandler,
	}
}

// newUnloadCmd - Erstellt den unload Command
func newUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "unload NAME [NAME...]",
		Aliases: []string{"stop"},
		Short:   "Unload files from the server",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    UnloadHandler,
	}
}
