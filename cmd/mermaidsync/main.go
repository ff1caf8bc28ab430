// Command mermaidsync runs the document authority and chat proxy, and offers
// terminal clients for live document sync and assistant queries.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikhildhole/mermaid-visualizer/internal/config"
	"github.com/nikhildhole/mermaid-visualizer/internal/identity"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "mermaidsync",
		Short:        "Live Mermaid document sync and assistant chat",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if envFile != "" {
				cfg, err = config.Load(envFile)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			logger = cfg.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	root.AddCommand(serveCmd(), watchCmd(), askCmd())
	return root
}

// sessionProvider returns a provider pinned to sessionID, or a generating
// one when it is empty.
func sessionProvider(sessionID string) (*identity.Provider, error) {
	if sessionID == "" {
		return identity.NewProvider(), nil
	}
	p, err := identity.NewFixedProvider(sessionID)
	if err != nil {
		return nil, fmt.Errorf("--session: %w", err)
	}
	return p, nil
}
