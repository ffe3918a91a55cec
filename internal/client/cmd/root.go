package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8000"

func NewRootCmd(version, buildDate string) *cobra.Command {
	serverURL := defaultServerURL
	if v := os.Getenv("SCRIBE_SERVER_URL"); v != "" {
		serverURL = v
	}
	root := &cobra.Command{
		Use:           "scribe",
		Short:         "scribe-crush CLI: record uploads and transcriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			serverURL = strings.TrimRight(serverURL, "/")
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", serverURL, "Server base URL")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmd(&serverURL))
	root.AddCommand(newRecordingsCmd(&serverURL))
	return root
}
