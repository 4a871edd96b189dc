package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/journal"
)

var (
	journalLimit int
	journalPlan  string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recently journaled plan steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sink, err := journal.Open(ctx, cfg.Journal)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer sink.Close(ctx)

		r, ok := sink.(journal.Reader)
		if !ok {
			return fmt.Errorf("journal sink %q cannot be read back", cfg.Journal.Sink)
		}
		limit := journalLimit
		if journalPlan != "" {
			limit = 0
		}
		entries, err := r.Recent(ctx, limit)
		if err != nil {
			return err
		}

		var rows [][]string
		for _, e := range entries {
			if journalPlan != "" && e.PlanID != journalPlan {
				continue
			}
			sql := ""
			if e.Statement != nil {
				sql = e.Statement.Text
			}
			step := e.StepID
			if e.Action == journal.ActionPlan {
				step = journal.ActionPlan
				sql = e.Error
			}
			rows = append(rows, []string{
				e.Time.Local().Format(time.DateTime), e.PlanID, e.Table + "." + e.Column, step, e.Status, sql,
			})
		}
		fmt.Println(renderTable([]string{"TIME", "PLAN", "TABLE.COLUMN", "STEP", "STATUS", "SQL"}, rows))
		return nil
	},
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "number of entries to show")
	journalCmd.Flags().StringVar(&journalPlan, "plan", "", "only show entries of this plan id")
	rootCmd.AddCommand(journalCmd)
}
