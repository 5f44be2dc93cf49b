package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getOutput string

var getCmd = &cobra.Command{
	Use:   "get <uri> <format>",
	Short: "Retrieve cached media for (uri, format)",
	Long: `Retrieve cached media content. Writes the raw bytes to stdout, or to
the file given with --output. Retrieval refreshes the entry's last
access time.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, format := args[0], args[1]

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		data, found, err := store.Get(cmd.Context(), uri, format)
		if err != nil {
			return fmt.Errorf("failed to retrieve media: %w", err)
		}
		if !found {
			return fmt.Errorf("no cached media for %s (%s)", uri, format)
		}

		if getOutput != "" {
			if err := os.WriteFile(getOutput, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", getOutput, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(data), getOutput)
			return nil
		}

		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "write content to a file instead of stdout")
	rootCmd.AddCommand(getCmd)
}
