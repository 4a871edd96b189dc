package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

func TestResultMaps(t *testing.T) {
	r := &Result{
		Columns: []string{"NAME", "Type"},
		Rows:    [][]any{{"id", "int"}, {"email", "varchar"}},
	}
	maps := r.Maps()
	if len(maps) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(maps))
	}
	if maps[1]["name"] != "email" || maps[1]["type"] != "varchar" {
		t.Errorf("unexpected row: %v", maps[1])
	}
	var nilResult *Result
	if nilResult.Maps() != nil {
		t.Error("nil result should map to nil")
	}
}

func TestSelectDatabase(t *testing.T) {
	ctx := context.Background()
	m := &Mock{}

	if err := selectDatabase(ctx, dialect.SQLServer{}, m, "", "shop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Executed) != 1 || m.Executed[0].Text != "USE [shop]" {
		t.Errorf("expected fallback database selected, got %v", m.Executed)
	}

	if err := selectDatabase(ctx, dialect.SQLServer{}, m, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Executed) != 1 {
		t.Error("no database should run no statement")
	}

	err := selectDatabase(ctx, dialect.SQLServer{}, m, "shop; DROP", "")
	if !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	m.ExecErrs = map[string]error{"USE": errors.New("Database 'nope' does not exist")}
	if err := selectDatabase(ctx, dialect.SQLServer{}, m, "nope", ""); err == nil {
		t.Error("expected error from failing USE")
	}
}

func TestPostgresSessionAlwaysSetsSearchPath(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		database   string
		configured string
		want       string
	}{
		{"", "", `SET search_path TO "public"`},
		{"", "sales", `SET search_path TO "sales"`},
		{"shop", "", `SET search_path TO "shop"`},
		{"shop", "sales", `SET search_path TO "shop"`},
	}
	for _, tt := range tests {
		m := &Mock{D: dialect.Postgres{}}
		if err := selectDatabase(ctx, m.D, m, tt.database, pgSchema(tt.configured)); err != nil {
			t.Fatalf("selectDatabase(%q, %q): %v", tt.database, tt.configured, err)
		}
		if len(m.Executed) != 1 || m.Executed[0].Text != tt.want {
			t.Errorf("selectDatabase(%q, %q) executed %v, want %s", tt.database, tt.configured, m.Executed, tt.want)
		}
	}
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), config.CatalogConfig{Dialect: "sqlite"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMockAnswersLookupsByKind(t *testing.T) {
	ctx := context.Background()
	m := &Mock{Constraints: map[schema.ConstraintKind][]string{
		schema.KindUnique: {"UQ_old"},
	}}
	st, _ := m.Dialect().LookupConstraint(schema.KindUnique, "users", "email")
	res, err := m.Query(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "UQ_old" {
		t.Errorf("unexpected rows: %v", res.Rows)
	}

	st, _ = m.Dialect().LookupConstraint(schema.KindDefault, "users", "email")
	res, _ = m.Query(ctx, st)
	if len(res.Rows) != 0 {
		t.Errorf("expected no default, got %v", res.Rows)
	}
}

func TestDescribeTable(t *testing.T) {
	m := &Mock{Results: map[string]*Result{
		dialect.TagDescribeTable: {
			Columns: []string{"name", "type", "default_value", "size", "precision", "is_null", "is_unique", "is_primary", "is_identity"},
			Rows: [][]any{
				{"id", "int", nil, "", "10", "NO", "NO", "YES", int64(1)},
				{"email", "nvarchar", "", "-1", "", "YES", "YES", "NO", nil},
				{"age", "int", "('18')", []byte(""), "10", "NO", "NO", "NO", int64(0)},
			},
		},
	}}

	cols, err := DescribeTable(context.Background(), m, m.Dialect(), "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}

	id := cols[0]
	if id.Name != "id" || id.DataType != "INT" || !id.Primary || !id.Identity || id.Nullable {
		t.Errorf("unexpected id column: %+v", id)
	}
	if id.Precision != "10" {
		t.Errorf("precision = %q", id.Precision)
	}
	email := cols[1]
	if email.Size != "MAX" || !email.Unique || !email.Nullable || email.Identity {
		t.Errorf("unexpected email column: %+v", email)
	}
	if cols[2].DefaultValue != "('18')" {
		t.Errorf("default = %q", cols[2].DefaultValue)
	}

	if _, err := DescribeTable(context.Background(), m, m.Dialect(), "bad name"); !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestListDatabasesAndTables(t *testing.T) {
	m := &Mock{Results: map[string]*Result{
		dialect.TagListDatabases: {
			Columns: []string{"database_id", "name"},
			Rows:    [][]any{{int64(5), "shop"}, {int64(6), "crm"}},
		},
		dialect.TagListTables: {
			Columns: []string{"table_name"},
			Rows:    [][]any{{"users"}, {"orders"}},
		},
	}}
	ctx := context.Background()

	dbs, err := ListDatabases(ctx, m, m.Dialect())
	if err != nil {
		t.Fatal(err)
	}
	if len(dbs) != 2 || dbs[0].ID != 5 || dbs[0].Name != "shop" {
		t.Errorf("unexpected databases: %+v", dbs)
	}

	tables, err := ListTables(ctx, m, m.Dialect())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[1].Name != "orders" {
		t.Errorf("unexpected tables: %+v", tables)
	}

	m.QueryErrs = map[string]error{dialect.TagListTables: errors.New("permission denied")}
	if _, err := ListTables(ctx, m, m.Dialect()); err == nil {
		t.Error("expected error")
	}
}
