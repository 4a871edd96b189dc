package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

var (
	tableDatabase string
	tableFile     string
	tableDryRun   bool
	addColumn     schema.ColumnSpec
	addNullable   bool
	addUnique     bool
	addPrimary    bool
)

func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt, err := loadRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the user databases on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			dbs, err := rt.engine.ListDatabases(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(dbs))
			for _, db := range dbs {
				rows = append(rows, []string{strconv.FormatInt(db.ID, 10), db.Name})
			}
			fmt.Println(renderTable([]string{"ID", "NAME"}, rows))
			return nil
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			tables, err := rt.engine.ListTables(ctx, tableDatabase)
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Println(t.Name)
			}
			return nil
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Show the column structure of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			cols, err := rt.engine.DescribeTable(ctx, tableDatabase, args[0])
			if err != nil {
				return err
			}
			fmt.Println(renderTable(columnHeaders, columnRows(cols)))
			return nil
		})
	},
}

var createTableCmd = &cobra.Command{
	Use:   "create-table",
	Short: "Create a table from a definition file",
	Long: `Read a table definition (YAML or JSON with "table" and "columns") and
create it. With --dry-run the CREATE TABLE statement is printed only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tableFile == "" {
			return fmt.Errorf("a table definition file is required (-f)")
		}
		spec, err := schema.LoadTableSpec(tableFile)
		if err != nil {
			return err
		}
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			if tableDryRun {
				st, err := rt.engine.PlanCreateTable(*spec)
				if err != nil {
					return err
				}
				fmt.Println(st.Text)
				return nil
			}
			st, err := rt.engine.CreateTable(ctx, tableDatabase, *spec)
			if err != nil {
				return err
			}
			fmt.Printf("Created table %s:\n%s\n", spec.Table, st.Text)
			return nil
		})
	},
}

var addColumnCmd = &cobra.Command{
	Use:   "add-column <table> <column> <type>",
	Short: "Add a column to a table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		col := addColumn
		col.Name, col.DataType = args[1], strings.ToUpper(args[2])
		col.Nullable = schema.Flag(addNullable)
		col.Unique = schema.Flag(addUnique)
		col.Primary = schema.Flag(addPrimary)
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			st, err := rt.engine.AddColumn(ctx, tableDatabase, args[0], col)
			if err != nil {
				return err
			}
			fmt.Println(st.Text)
			return nil
		})
	},
}

var dropColumnCmd = &cobra.Command{
	Use:   "drop-column <table> <column>",
	Short: "Remove a column from a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			st, err := rt.engine.DropColumn(ctx, tableDatabase, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(st.Text)
			return nil
		})
	},
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func init() {
	for _, c := range []*cobra.Command{tablesCmd, describeCmd, createTableCmd, addColumnCmd, dropColumnCmd} {
		c.Flags().StringVar(&tableDatabase, "database", "", "database to run in (default from config)")
	}
	createTableCmd.Flags().StringVarP(&tableFile, "file", "f", "", "table definition file (YAML or JSON)")
	createTableCmd.Flags().BoolVar(&tableDryRun, "dry-run", false, "print the statement without executing it")

	addColumnCmd.Flags().Var((*sizeValue)(&addColumn.Size), "size", "length or precision, e.g. 50, 10,2 or MAX")
	addColumnCmd.Flags().StringVar(&addColumn.DefaultValue, "default", "", "default value")
	addColumnCmd.Flags().BoolVar(&addNullable, "null", false, "allow NULL")
	addColumnCmd.Flags().BoolVar(&addUnique, "unique", false, "add a unique constraint")
	addColumnCmd.Flags().BoolVar(&addPrimary, "primary", false, "make the column the primary key")

	rootCmd.AddCommand(databasesCmd, tablesCmd, describeCmd, createTableCmd, addColumnCmd, dropColumnCmd)
}

// sizeValue adapts schema.Size to a pflag value.
type sizeValue schema.Size

func (s *sizeValue) String() string { return string(*s) }
func (s *sizeValue) Set(v string) error {
	*s = sizeValue(strings.TrimSpace(v))
	return nil
}
func (s *sizeValue) Type() string { return "size" }

var columnHeaders = []string{"NAME", "TYPE", "SIZE", "NULL", "DEFAULT", "UNIQUE", "PRIMARY", "IDENTITY"}

func columnRows(cols []catalog.ColumnInfo) [][]string {
	rows := make([][]string, 0, len(cols))
	for _, c := range cols {
		rows = append(rows, []string{
			c.Name, c.DataType, string(c.Size), yesNo(bool(c.Nullable)), c.DefaultValue,
			yesNo(bool(c.Unique)), yesNo(bool(c.Primary)), yesNo(bool(c.Identity)),
		})
	}
	return rows
}
