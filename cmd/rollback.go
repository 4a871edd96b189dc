package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/journal"
	"github.com/senomardetritos/sgbd-sqlserver/internal/rollback"
)

var (
	rollbackSteps    []string
	rollbackDatabase string
	rollbackDryRun   bool
	rollbackConfirm  bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <plan-id>",
	Short: "Undo the journaled steps of a previous alteration",
	Long: `Look up the steps a plan executed in the journal and run their inverse
statements, newest first. Requires a journal sink that can be read back
(file or mongodb).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rollbackConfirm && !rollbackDryRun {
			fmt.Println("Rollback requires --confirm to proceed (or --dry-run to preview).")
			fmt.Println("This will run the inverse statements against the catalog.")
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		rt, err := loadRuntime(ctx, runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.close()

		r, ok := rt.reader()
		if !ok {
			return fmt.Errorf("journal sink %q cannot be read back", rt.cfg.Journal.Sink)
		}
		entries, err := r.Recent(ctx, 0)
		if err != nil {
			return fmt.Errorf("reading journal: %w", err)
		}
		steps, database, err := journal.StepsFor(entries, args[0])
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return fmt.Errorf("no executed steps journaled for plan %s", args[0])
		}
		if rollbackDatabase != "" {
			database = rollbackDatabase
		}

		result, err := rt.engine.Undo(ctx, database, steps, rollback.Options{
			Steps:  rollbackSteps,
			DryRun: rollbackDryRun,
		})
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}

		if rollbackDryRun {
			fmt.Println("Statements that would run:")
			for _, st := range result.Statements {
				fmt.Printf("  %s\n", st.Text)
			}
		}
		if len(result.Compensated) > 0 {
			fmt.Printf("Reverted steps: %v\n", result.Compensated)
		}
		if len(result.Errors) > 0 {
			fmt.Println("Errors during rollback:")
			for _, e := range result.Errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("%d step(s) could not be reverted", len(result.Errors))
		}
		return nil
	},
}

func init() {
	rollbackCmd.Flags().StringSliceVar(&rollbackSteps, "steps", nil, "specific step ids to revert (default: all)")
	rollbackCmd.Flags().StringVar(&rollbackDatabase, "database", "", "database to run in (default: the journaled one)")
	rollbackCmd.Flags().BoolVar(&rollbackDryRun, "dry-run", false, "print the inverse statements without running them")
	rollbackCmd.Flags().BoolVar(&rollbackConfirm, "confirm", false, "skip confirmation prompt")
	rootCmd.AddCommand(rollbackCmd)
}
