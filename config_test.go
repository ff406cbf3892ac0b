package dbastion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)

	assert.Equal(t, 1000, config.Query.DefaultLimit)
	assert.Equal(t, "json", config.Query.DefaultFormat)
	assert.Equal(t, 30, config.Log.RetentionDays)
	assert.NotEqual(t, "", config.Log.Root)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbastion.yaml")

	content := `query:
  default_format: text
  default_limit: 250
log:
  root: /tmp/dbastion-logs
  retention_days: 7
cost:
  max_rows: 100000
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "text", config.Query.DefaultFormat)
	assert.Equal(t, 250, config.Query.DefaultLimit)
	assert.Equal(t, "/tmp/dbastion-logs", config.Log.Root)
	assert.Equal(t, 7, config.Log.RetentionDays)
	assert.Equal(t, 100000.0, config.Cost.MaxRows)
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("DBASTION_TEST_LOG_ROOT", "/var/log/dbastion")

	path := filepath.Join(t.TempDir(), "dbastion.yaml")
	content := "log:\n  root: ${DBASTION_TEST_LOG_ROOT}\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "/var/log/dbastion", config.Log.Root)
}

func TestLoadConfigRejectsInvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbastion.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("query:\n  default_format: csv\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "default_format"))
}

func TestLoadConfigRejectsNegativeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbastion.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("log:\n  retention_days: -1\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestNormalizeDialect(t *testing.T) {
	assert.Equal(t, DialectPostgres, NormalizeDialect("postgresql"))
	assert.Equal(t, DialectPostgres, NormalizeDialect("pgx"))
	assert.Equal(t, DialectMySQL, NormalizeDialect("MariaDB"))
	assert.Equal(t, DialectSQLite, NormalizeDialect("sqlite3"))
	assert.Equal(t, Dialect("duckdb"), NormalizeDialect("DuckDB"))
}

func TestDialectDriverName(t *testing.T) {
	assert.Equal(t, "pgx", DialectPostgres.DriverName())
	assert.Equal(t, "mysql", DialectMySQL.DriverName())
	assert.Equal(t, "sqlite3", DialectSQLite.DriverName())
}
