package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the catalog connection and show the active settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rt, err := loadRuntime(ctx, runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.close()

		cfg := rt.cfg
		fmt.Printf("Catalog:      %s on %s:%d\n", rt.engine.Dialect().Name(), cfg.Catalog.Host, cfg.Catalog.Port)
		if err := rt.engine.Ping(ctx); err != nil {
			fmt.Printf("Connection:   FAILED (%v)\n", err)
			return err
		}
		fmt.Println("Connection:   OK")
		fmt.Printf("Transactions: %v (compensation %v)\n", cfg.Alter.UseTransaction() && rt.engine.Dialect().TransactionalDDL(), cfg.Alter.UseCompensation())
		fmt.Printf("Metrics:      %s\n", cfg.Metrics.Backend)
		fmt.Printf("Journal:      %s\n", cfg.Journal.Sink)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
