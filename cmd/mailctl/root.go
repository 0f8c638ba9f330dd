package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"CardScan/internal/client"
)

const defaultServer = "http://localhost:8000"

func NewRootCmd() *cobra.Command {
	var server string

	root := &cobra.Command{
		Use:           "mailctl",
		Short:         "Submit bulk emails and inspect the CardScan mail queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if env := os.Getenv("MAILCTL_SERVER"); env != "" {
		server = env
	}
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&server, "server", server, "mailer API base URL (env MAILCTL_SERVER)")

	newClient := func() *client.Client { return client.New(server) }

	root.AddCommand(SendCmd(newClient))
	root.AddCommand(StatusCmd(newClient))
	root.AddCommand(DetailsCmd(newClient))
	root.AddCommand(BatchCmd(newClient))
	root.AddCommand(ProcessCmd(newClient))

	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
