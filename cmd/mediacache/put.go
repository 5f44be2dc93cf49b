package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <uri> <format> <file>",
	Short: "Cache a media file under (uri, format)",
	Long: `Cache the contents of a file under a content identifier and format
variant. An existing entry for the same pair is replaced wholesale.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, format, path := args[0], args[1], args[2]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Put(cmd.Context(), uri, format, data); err != nil {
			return fmt.Errorf("failed to cache media: %w", err)
		}

		fmt.Printf("Cached %d bytes for %s (%s)\n", len(data), uri, format)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
