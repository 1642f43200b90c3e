// cmd_serve.go - Server und Version Commands
// Hauptfunktionen: RunServer, versionHandler
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/server"
	"github.com/lora-inspector/inspector/version"
)

// RunServer - Startet den Inspector-Server
func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// canonicalVersion macht aus "0.1.2" ein von semver lesbares "v0.1.2"
func canonicalVersion(v string) string {
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// versionHandler - Zeigt Server- und Client-Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	w := cmd.OutOrStdout()

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Fprintln(w, "Warning: could not connect to a running lora-inspector instance")
	}

	if serverVersion != "" {
		fmt.Fprintf(w, "lora-inspector version is %s\n", serverVersion)
	}

	sv, cv := canonicalVersion(serverVersion), canonicalVersion(version.Version)
	switch {
	case serverVersion == "":
		fmt.Fprintf(w, "Warning: client version is %s\n", version.Version)
	case !semver.IsValid(sv) || !semver.IsValid(cv):
		if serverVersion != version.Version {
			fmt.Fprintf(w, "Warning: client version is %s\n", version.Version)
		}
	case semver.Compare(sv, cv) < 0:
		fmt.Fprintf(w, "Warning: client version %s is newer than the server\n", version.Version)
	case semver.Compare(sv, cv) > 0:
		fmt.Fprintf(w, "Warning: client version %s is older than the server\n", version.Version)
	}
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the inspector server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}

// newVersionCmd - Erstellt den version Command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.ExactArgs(0),
		Run:   versionHandler,
	}
}
