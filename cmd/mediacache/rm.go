package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <uri> [format]",
	Short: "Remove cached media",
	Long: `Remove the cached entry for (uri, format), or every entry for the
identifier across all formats when no format is given. Removing absent
entries is not an error.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		uri := args[0]

		if len(args) == 2 {
			if err := store.Remove(cmd.Context(), uri, args[1]); err != nil {
				return fmt.Errorf("failed to remove media: %w", err)
			}
			fmt.Printf("Removed %s (%s)\n", uri, args[1])
			return nil
		}

		if err := store.RemoveAll(cmd.Context(), uri); err != nil {
			return fmt.Errorf("failed to remove media: %w", err)
		}
		fmt.Printf("Removed all formats of %s\n", uri)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
