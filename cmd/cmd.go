// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lora-inspector/inspector/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-32s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "lora-inspector",
		Short:         "Inspect LoRA safetensors files",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	showCmd := newShowCmd()
	keysCmd := newKeysCmd()
	statsCmd := newStatsCmd()
	blocksCmd := newBlocksCmd()
	compareCmd := newCompareCmd()
	psCmd := newPsCmd()
	unloadCmd := newUnloadCmd()
	versionCmd := newVersionCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["LORA_INSPECTOR_HOST"]}

	for _, cmd := range []*cobra.Command{
		serveCmd,
		showCmd,
		keysCmd,
		statsCmd,
		blocksCmd,
		psCmd,
		unloadCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["LORA_INSPECTOR_DEBUG"],
				envVars["LORA_INSPECTOR_HOST"],
				envVars["LORA_INSPECTOR_LOAD_TIMEOUT"],
				envVars["LORA_INSPECTOR_PROBE_INTERVAL"],
				envVars["LORA_INSPECTOR_MAX_CONCURRENCY"],
				envVars["LORA_INSPECTOR_ORIGINS"],
				envVars["LORA_INSPECTOR_CACHE"],
				envVars["LORA_INSPECTOR_NOCACHE"],
			})
		case statsCmd, blocksCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["LORA_INSPECTOR_HOST"],
				envVars["LORA_INSPECTOR_CACHE"],
				envVars["LORA_INSPECTOR_NOCACHE"],
			})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		showCmd,
		keysCmd,
		statsCmd,
		blocksCmd,
		compareCmd,
		psCmd,
		unloadCmd,
		versionCmd,
	)

	return rootCmd
}
