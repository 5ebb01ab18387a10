package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdeck-dev/askdeck/internal/analytics"
	"github.com/askdeck-dev/askdeck/internal/profile"
)

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all user profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			profiles := profile.New(store, cfg).ListProfiles(cmd.Context())
			printJSON(profiles)
			return nil
		},
	}
}

func newImportLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy <userID>",
		Short: "Migrate a user's legacy event stream into canonical records and indices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			migrated := analytics.New(store, cfg).ImportLegacyStream(cmd.Context(), args[0])
			fmt.Printf("Migrated %d events for user %s\n", migrated, args[0])
			return nil
		},
	}
}

func newCompactProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact-profile <userID>",
		Short: "Fold a legacy profile key into the canonical shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if profile.New(store, cfg).CompactLegacyKey(cmd.Context(), args[0]) {
				fmt.Println("Compacted")
			} else {
				fmt.Println("Nothing to compact")
			}
			return nil
		},
	}
}
