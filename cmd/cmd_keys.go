// cmd_keys.go - Keys Command
// Hauptfunktionen: KeysHandler
package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/keys"
)

// KeysHandler - Listet die Keys einer Datei, optional klassifiziert
func KeysHandler(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	if !slices.Contains(api.Kinds, kind) {
		return fmt.Errorf("unknown kind %q, expected one of %s", kind, strings.Join(api.Kinds, ", "))
	}
	classify, _ := cmd.Flags().GetBool("classify")

	client, err := connect(cmd)
	if err != nil {
		return err
	}

	name, err := loadFile(cmd, client, args[0])
	if err != nil {
		return err
	}

	resp, err := client.Keys(cmd.Context(), &api.KeysRequest{Name: name, Kind: kind, Classify: classify})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !classify {
		for _, k := range resp.Keys {
			fmt.Fprintln(w, k)
		}
		return nil
	}

	table := newTable(w, "KEY", "FAMILY", "BLOCK", "TYPE", "ID", "SUB", "KIND")
	for _, pk := range resp.Parsed {
		table.Append([]string{
			pk.SourceKey,
			pk.Family.String(),
			pk.CanonicalName,
			pk.BlockType,
			blockID(pk.BlockID),
			blockID(pk.SubBlockID),
			keyKind(pk),
		})
	}
	table.Render()

	if len(resp.Unrecognized) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d unrecognized keys:\n", len(resp.Unrecognized))
		for _, k := range resp.Unrecognized {
			fmt.Fprintln(cmd.ErrOrStderr(), " ", k)
		}
	}
	return nil
}

func blockID(id int) string {
	if id == keys.Absent {
		return "-"
	}
	return strconv.Itoa(id)
}

// keyKind - Kurzbeschreibung der Operation eines Keys
func keyKind(pk keys.ParsedKey) string {
	var kinds []string
	if pk.IsAttention {
		kinds = append(kinds, "attn")
	}
	if pk.IsConvolution {
		kinds = append(kinds, "conv")
	}
	if pk.IsSampler {
		kinds = append(kinds, "sampler")
	}
	if pk.Modality != "" {
		kinds = append(kinds, pk.Modality)
	}
	if pk.Encoder > 0 {
		kinds = append(kinds, "te"+strconv.Itoa(pk.Encoder))
	}
	return strings.Join(kinds, ",")
}

// newKeysCmd - Erstellt den keys Command
func newKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys FILE",
		Short: "List the tensor keys of a LoRA file",
		Args:  cobra.ExactArgs(1),
		RunE:  KeysHandler,
	}

	keysCmd.Flags().String("kind", api.KindAll, "Key kind ("+strings.Join(api.Kinds, ", ")+")")
	keysCmd.Flags().Bool("classify", false, "Show the block position of every base name")
	return keysCmd
}
