package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// DatabaseInfo is one entry of the database listing.
type DatabaseInfo struct {
	ID   int64  `json:"database_id"`
	Name string `json:"name"`
}

// TableInfo is one entry of the table listing.
type TableInfo struct {
	Name string `json:"TABLE_NAME"`
}

// ColumnInfo is one described column. It round-trips as the "field" of an
// alteration request.
type ColumnInfo struct {
	schema.TableColumn
	Precision string `json:"precision,omitempty"`
}

// ListDatabases lists user databases (schemas on PostgreSQL and Oracle).
func ListDatabases(ctx context.Context, q Querier, d dialect.Dialect) ([]DatabaseInfo, error) {
	res, err := q.Query(ctx, d.ListDatabases())
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	out := make([]DatabaseInfo, 0, len(res.Rows))
	for _, row := range res.Maps() {
		id, _ := strconv.ParseInt(text(row["database_id"]), 10, 64)
		out = append(out, DatabaseInfo{ID: id, Name: text(row["name"])})
	}
	return out, nil
}

// ListTables lists base tables of the session's database.
func ListTables(ctx context.Context, q Querier, d dialect.Dialect) ([]TableInfo, error) {
	res, err := q.Query(ctx, d.ListTables())
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	out := make([]TableInfo, 0, len(res.Rows))
	for _, row := range res.Maps() {
		out = append(out, TableInfo{Name: text(row["table_name"])})
	}
	return out, nil
}

// DescribeTable returns the columns of table in ordinal order.
func DescribeTable(ctx context.Context, q Querier, d dialect.Dialect, table string) ([]ColumnInfo, error) {
	st, err := d.DescribeTable(table)
	if err != nil {
		return nil, err
	}
	res, err := q.Query(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	out := make([]ColumnInfo, 0, len(res.Rows))
	for _, row := range res.Maps() {
		size := text(row["size"])
		if size == "-1" {
			size = "MAX"
		}
		c := ColumnInfo{
			TableColumn: schema.TableColumn{
				ColumnSpec: schema.ColumnSpec{
					Name:         text(row["name"]),
					DataType:     strings.ToUpper(text(row["type"])),
					Size:         schema.Size(size),
					DefaultValue: d.DefaultValue(text(row["default_value"])),
					Nullable:     flag(row["is_null"]),
					Unique:       flag(row["is_unique"]),
					Primary:      flag(row["is_primary"]),
				},
				Identity: flag(row["is_identity"]),
			},
			Precision: text(row["precision"]),
		}
		out = append(out, c)
	}
	return out, nil
}

// text renders a driver value as a string; NULL becomes "".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// flag interprets YES/NO, Y/N, 1/0 and booleans. Unrecognized values are false.
func flag(v any) schema.Flag {
	switch t := v.(type) {
	case nil, bool, string:
		f, _ := schema.ParseFlag(t)
		return f
	default:
		f, _ := schema.ParseFlag(text(t))
		return f
	}
}
