// Command askdeck is the admin CLI. It talks to the backend directly, using
// the same configuration as the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "askdeck",
		Short:         "Admin interface for the askdeck event/analytics store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newPingCmd(),
		newCountsCmd(),
		newKeysCmd(),
		newInspectCmd(),
		newUsersCmd(),
		newImportLegacyCmd(),
		newCompactProfileCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStore loads config and connects to the backend.
func openStore() (backend.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := backend.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
