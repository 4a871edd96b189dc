package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

var (
	planFile     string
	planDatabase string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the statements a column alteration would run",
	Long: `Read an alteration request (YAML or JSON with "table", "field" and "data")
and print the reconciled plan without executing anything. The printed
fingerprint can be passed back as expected_fingerprint when applying.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadAlterRequest(planFile, planDatabase)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		rt, err := loadRuntime(ctx, runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.close()

		plan, err := rt.engine.PreviewAlter(ctx, *req)
		if err != nil {
			return err
		}
		printPlan(os.Stdout, plan)
		return nil
	},
}

func loadAlterRequest(path, database string) (*schema.AlterColumnRequest, error) {
	if path == "" {
		return nil, fmt.Errorf("a request file is required (-f)")
	}
	req, err := schema.LoadAlterRequest(path)
	if err != nil {
		return nil, err
	}
	if database != "" {
		req.Database = database
	}
	return req, nil
}

func printPlan(w io.Writer, plan *alter.Plan) {
	fmt.Fprintf(w, "Plan %s for %s.%s\n", plan.ID, plan.Table, plan.Column)
	if plan.RenamedFrom != "" {
		fmt.Fprintf(w, "  renames %s -> %s\n", plan.RenamedFrom, plan.Column)
	}
	fmt.Fprintln(w)
	if len(plan.Steps) == 0 {
		fmt.Fprintln(w, "  Nothing to do.")
	}
	for i, s := range plan.Steps {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, s.ID, s.Statement.Text)
		if s.Inverse != nil {
			fmt.Fprintf(w, "       undo: %s\n", s.Inverse.Text)
		}
	}
	for _, warn := range plan.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	fmt.Fprintf(w, "\nFingerprint: %s\n", plan.Fingerprint())
}

func printOutcome(w io.Writer, out *engine.AlterOutcome, err error) {
	if err == nil {
		fmt.Fprintf(w, "Applied %d step(s)", len(out.Completed))
		if out.Transactional {
			fmt.Fprint(w, " in one transaction")
		}
		fmt.Fprintln(w, ".")
		return
	}

	fmt.Fprintf(w, "Alteration failed: %v\n", err)
	if out == nil {
		return
	}
	if len(out.Completed) > 0 {
		fmt.Fprintf(w, "  completed before failure: %v\n", out.Completed)
	}
	if out.RolledBack {
		fmt.Fprintln(w, "  changes were rolled back")
	}
	if c := out.Compensation; c != nil {
		if len(c.Compensated) > 0 {
			fmt.Fprintf(w, "  compensated: %v\n", c.Compensated)
		}
		for _, e := range c.Errors {
			fmt.Fprintf(w, "  compensation error: %s\n", e)
		}
	}
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "alteration request file (YAML or JSON)")
	planCmd.Flags().StringVar(&planDatabase, "database", "", "database to run in (overrides the request)")
	rootCmd.AddCommand(planCmd)
}
