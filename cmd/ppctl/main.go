// Command ppctl is the PatchPilot admin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	server    string
	tokenPath string
	jsonOut   bool
	timeout   time.Duration
}

func (o *options) session() *Session {
	s := NewSession(o.server, o.tokenPath)
	s.LoadToken()
	return s
}

func (o *options) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "ppctl",
		Short:         "ppctl operates a PatchPilot server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddGroup(&cobra.Group{ID: "operations", Title: "Operations:"})

	server := os.Getenv("PATCHPILOT_SERVER")
	if server == "" {
		server = "http://127.0.0.1:9400"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "server base URL (env PATCHPILOT_SERVER)")
	root.PersistentFlags().StringVar(&opts.tokenPath, "token-file", DefaultTokenPath(), "where the access token is kept")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "display result in JSON")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(loginCommand(opts))
	root.AddCommand(devicesCommand(opts))
	root.AddCommand(actionsCommand(opts))
	root.AddCommand(ttlCommand(opts))
	root.AddCommand(settingsCommand(opts))
	root.AddCommand(historyCommand(opts))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, printErr(err))
		os.Exit(1)
	}
}
