package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}

		fmt.Printf("Cached entries: %d\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
