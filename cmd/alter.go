package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/review"
)

var (
	alterFile     string
	alterDatabase string
	alterYes      bool
)

var alterCmd = &cobra.Command{
	Use:   "alter",
	Short: "Converge a column to the shape described in a request file",
	Long: `Preview the reconciled plan for an alteration request, confirm it in an
interactive review, then apply it. With --yes the review is skipped.

The plan is applied only if it still matches the reviewed one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadAlterRequest(alterFile, alterDatabase)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := loadRuntime(ctx, runtimeOptions{quiet: !alterYes})
		if err != nil {
			return err
		}
		defer rt.close()

		plan, err := rt.engine.PreviewAlter(ctx, *req)
		if err != nil {
			return err
		}
		fingerprint := plan.Fingerprint()
		apply := func(ctx context.Context) (*engine.AlterOutcome, error) {
			r := *req
			r.ExpectedFingerprint = fingerprint
			return rt.engine.AlterColumn(ctx, r)
		}

		if alterYes {
			printPlan(os.Stdout, plan)
			fmt.Println()
			out, err := apply(ctx)
			printOutcome(os.Stdout, out, err)
			return err
		}

		p := tea.NewProgram(review.NewModel(plan, apply))
		final, err := p.Run()
		if err != nil {
			return err
		}
		m := final.(review.Model)
		if m.Cancelled() {
			fmt.Println("Alteration cancelled.")
			return nil
		}
		_, err = m.Outcome()
		return err
	},
}

func init() {
	alterCmd.Flags().StringVarP(&alterFile, "file", "f", "", "alteration request file (YAML or JSON)")
	alterCmd.Flags().StringVar(&alterDatabase, "database", "", "database to run in (overrides the request)")
	alterCmd.Flags().BoolVarP(&alterYes, "yes", "y", false, "apply without interactive review")
	rootCmd.AddCommand(alterCmd)
}
