package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdeck-dev/askdeck/internal/backend"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("PONG")
			return nil
		},
	}
}

func newCountsCmd() *cobra.Command {
	var category, userID string
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show question counts from the index cardinalities",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()
			zset := backend.NewSortedSetClient(store)

			switch {
			case category != "":
				fmt.Println(zset.Cardinality(ctx, backend.CategoryIndexKey(category)))
			case userID != "":
				fmt.Println(zset.Cardinality(ctx, backend.UserTimestampsKey(userID)))
			default:
				fmt.Println(zset.Cardinality(ctx, backend.GlobalIndexKey()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "count one category")
	cmd.Flags().StringVar(&userID, "user", "", "count one user")
	return cmd
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <pattern>",
		Short: "List keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			keys, err := store.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <key>",
		Short: "Dump a key's contents, whatever its type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()
			key := args[0]

			keyType, err := store.Type(ctx, key)
			if err != nil {
				return err
			}
			switch keyType {
			case "hash":
				fields, err := store.HGetAll(ctx, key)
				if err != nil {
					return err
				}
				printJSON(fields)
			case "zset":
				members, err := store.ZRange(ctx, key, 0, -1)
				if err != nil {
					return err
				}
				printJSON(members)
			case "stream":
				entries, err := store.XRange(ctx, key, "-", "+", 0)
				if err != nil {
					return err
				}
				printJSON(entries)
			case "string":
				val, err := store.Get(ctx, key)
				if err != nil {
					return err
				}
				fmt.Println(val)
			default:
				return fmt.Errorf("key %s not found", key)
			}
			return nil
		},
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	fmt.Println(string(data))
}
