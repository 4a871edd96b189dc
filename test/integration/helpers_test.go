//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/logging"
)

func mssqlConfig(t *testing.T) config.CatalogConfig {
	t.Helper()
	return config.CatalogConfig{
		Dialect:        "sqlserver",
		Host:           envOrDefault("SGBD_TEST_MSSQL_HOST", "localhost"),
		Port:           envInt("SGBD_TEST_MSSQL_PORT", 11433),
		Username:       envOrDefault("SGBD_TEST_MSSQL_USER", "sa"),
		Password:       envOrDefault("SGBD_TEST_MSSQL_PASSWORD", "Str0ng!Passw0rd"),
		Database:       envOrDefault("SGBD_TEST_MSSQL_DATABASE", "sgbd_test"),
		MaxConnections: 4,
		Params:         map[string]string{"encrypt": "disable"},
	}
}

func pgConfig(t *testing.T) config.CatalogConfig {
	t.Helper()
	return config.CatalogConfig{
		Dialect:        "postgres",
		Host:           envOrDefault("SGBD_TEST_PG_HOST", "localhost"),
		Port:           envInt("SGBD_TEST_PG_PORT", 25432),
		Username:       envOrDefault("SGBD_TEST_PG_USER", "postgres"),
		Password:       envOrDefault("SGBD_TEST_PG_PASSWORD", "postgres"),
		Database:       envOrDefault("SGBD_TEST_PG_DATABASE", "sgbd_test"),
		Schema:         "public",
		MaxConnections: 4,
		Params:         map[string]string{"sslmode": "disable"},
	}
}

func mongoURI(t *testing.T) string {
	t.Helper()
	return envOrDefault("SGBD_TEST_MONGO_URI", "mongodb://localhost:37017/?directConnection=true")
}

func mongoDatabase(t *testing.T) string {
	t.Helper()
	return envOrDefault("SGBD_TEST_MONGO_DATABASE", "sgbd_test")
}

func skipIfNoSQLServer(t *testing.T) {
	t.Helper()
	if os.Getenv("SGBD_TEST_MSSQL_HOST") == "" && os.Getenv("SGBD_TEST_MSSQL_PORT") == "" {
		t.Skip("skipping: SGBD_TEST_MSSQL_HOST/PORT not set")
	}
}

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("SGBD_TEST_PG_HOST") == "" && os.Getenv("SGBD_TEST_PG_PORT") == "" {
		t.Skip("skipping: SGBD_TEST_PG_HOST/PORT not set")
	}
}

func skipIfNoMongo(t *testing.T) {
	t.Helper()
	if os.Getenv("SGBD_TEST_MONGO_URI") == "" {
		t.Skip("skipping: SGBD_TEST_MONGO_URI not set")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func testLogger() *slog.Logger {
	return logging.Discard()
}

// newEngine connects to the catalog described by cc and returns an engine
// over it. The store is closed when the test ends.
func newEngine(t *testing.T, cc config.CatalogConfig) *engine.Engine {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := catalog.Open(ctx, cc)
	if err != nil {
		t.Fatalf("connecting to %s: %v", cc.Dialect, err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{Version: config.CurrentVersion, Catalog: cc}
	return engine.New(cfg, store, testLogger())
}

// scratchTable returns a table name unique to the test and drops it when the
// test ends.
func scratchTable(t *testing.T, eng *engine.Engine, database string) string {
	t.Helper()
	name := fmt.Sprintf("it_%d", time.Now().UnixNano()%1_000_000_000)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sess, err := eng.Store.Acquire(ctx, database)
		if err != nil {
			return
		}
		defer sess.Release()
		q, err := eng.Dialect().QuoteIdent(name)
		if err != nil {
			return
		}
		_ = sess.Exec(ctx, dialect.Statement{Text: "DROP TABLE " + q})
	})
	return name
}
