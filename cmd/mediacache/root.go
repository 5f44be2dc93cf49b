package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kaidobit/mediacache/internal/config"
	"github.com/kaidobit/mediacache/internal/logger"
	"github.com/kaidobit/mediacache/pkg/mediacache"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediacache",
	Short: "Encrypted-at-rest cache for binary media objects",
	Long: `mediacache maintains a persistent SQLite-backed cache of binary media
objects (files, thumbnails) keyed by content identifier and format variant.
With a passphrase configured, identifiers are stored as keyed hashes and
content is sealed with authenticated encryption.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mediacache.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", ".", "directory holding the cache database")
	rootCmd.PersistentFlags().String("passphrase", "", "passphrase enabling encryption at rest")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	viper.BindPFlag("passphrase", rootCmd.PersistentFlags().Lookup("passphrase"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mediacache")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("MEDIACACHE")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openStore loads the config and opens the store for one subcommand run.
func openStore(cmd *cobra.Command) (*mediacache.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLoggerFromString(cfg.LogLevel)

	store, err := mediacache.Open(cmd.Context(), cfg.StoreDir, cfg.Passphrase, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return store, nil
}
