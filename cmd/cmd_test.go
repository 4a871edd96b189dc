package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/rollback"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

func TestLoadAlterRequestOverridesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yaml")
	body := `database: shop
table: users
field: {name: age, type: INT, is_null: "YES"}
data: {name: age, type: BIGINT, is_null: "NO"}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := loadAlterRequest(path, "")
	if err != nil {
		t.Fatalf("loadAlterRequest: %v", err)
	}
	if req.Database != "shop" || req.Desired.DataType != "BIGINT" || !req.Prior.Nullable {
		t.Errorf("request = %+v", req)
	}

	req, err = loadAlterRequest(path, "archive")
	if err != nil {
		t.Fatal(err)
	}
	if req.Database != "archive" {
		t.Errorf("database = %q, want archive", req.Database)
	}

	if _, err := loadAlterRequest("", ""); err == nil {
		t.Error("expected error for missing file flag")
	}
}

func TestPrintPlan(t *testing.T) {
	inv := dialect.Statement{Text: "ALTER TABLE [users] DROP CONSTRAINT [DF__users__age]"}
	plan := &alter.Plan{
		Table: "users", Column: "age", RenamedFrom: "idade",
		Steps: []alter.Step{
			{ID: "rename", Statement: dialect.Statement{Text: "EXEC sp_rename @objname, @newname, 'COLUMN'"}},
			{ID: "add:default", Statement: dialect.Statement{Text: "ALTER TABLE [users] ADD CONSTRAINT [DF__users__age] DEFAULT '18' FOR [age]"}, Inverse: &inv},
		},
		Warnings: []string{"two unique constraints on age"},
	}

	var buf bytes.Buffer
	printPlan(&buf, plan)
	out := buf.String()
	for _, want := range []string{
		"renames idade -> age",
		"1. [rename]",
		"2. [add:default]",
		"undo: " + inv.Text,
		"warning: two unique constraints on age",
		"Fingerprint: " + plan.Fingerprint(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintPlanEmpty(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, &alter.Plan{Table: "users", Column: "age"})
	if !strings.Contains(buf.String(), "Nothing to do.") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &engine.AlterOutcome{Transactional: true, Completed: []string{"type", "add:default"}}, nil)
	if got := buf.String(); got != "Applied 2 step(s) in one transaction.\n" {
		t.Errorf("success output = %q", got)
	}

	buf.Reset()
	printOutcome(&buf, &engine.AlterOutcome{
		Completed:    []string{"type"},
		RolledBack:   true,
		Compensation: &rollback.Result{Compensated: []string{"type"}},
	}, errors.New("step add:default failed"))
	out := buf.String()
	for _, want := range []string{"Alteration failed: step add:default failed", "completed before failure: [type]", "rolled back", "compensated: [type]"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printOutcome(&buf, nil, errors.New("invalid input"))
	if buf.String() != "Alteration failed: invalid input\n" {
		t.Errorf("nil outcome output = %q", buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "plan", "alter", "databases", "tables", "describe", "create-table", "add-column", "drop-column", "journal", "rollback", "config", "init", "status"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestRenderTableDescribesColumns(t *testing.T) {
	cols := []catalog.ColumnInfo{{TableColumn: schema.TableColumn{
		ColumnSpec: schema.ColumnSpec{Name: "preço", DataType: "DECIMAL", Size: "10,2", DefaultValue: "0", Unique: true},
	}}}
	out := renderTable(columnHeaders, columnRows(cols))

	for _, want := range []string{"NAME", "IDENTITY", "preço", "DECIMAL", "10,2", "YES", "NO"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n") + 1; lines < 5 {
		t.Errorf("expected border, header, separator and one row, got %d lines:\n%s", lines, out)
	}
}
