package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sgbd",
	Short: "sgbd: database administration backend for SQL Server",
	Long: `sgbd browses databases, tables and column structures, creates tables,
and converges existing columns to a desired shape (type, nullability,
default, uniqueness, primary key and name) one reconciled plan at a time.

Run "sgbd serve" to expose the HTTP API used by the web client.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = version + " (" + commit + ", " + date + ")"
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.sgbd/sgbd.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
