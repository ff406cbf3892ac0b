package adapter

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLabelComment(t *testing.T) {
	labels := map[string]string{"tool": "dbastion", "env": "ci"}

	// Keys are sorted for a stable wire form.
	assert.Equal(t, "/* dbastion: env=ci, tool=dbastion */ ", labelComment(labels))
	assert.Equal(t, "", labelComment(nil))
}

func TestIsWriteWithoutReturning(t *testing.T) {
	cases := map[string]bool{
		"INSERT INTO t (a) VALUES (1)":                   true,
		"UPDATE t SET a = 1 WHERE id = 2":                true,
		"DELETE FROM t WHERE id = 3":                     true,
		"delete from t where id = 3":                     true,
		"/* dbastion: tool=dbastion */ DELETE FROM t":    true,
		"INSERT INTO t (a) VALUES (1) RETURNING id":      false,
		"DELETE FROM t WHERE id = 1 RETURNING *":         false,
		"SELECT * FROM t":                                false,
		"/* dbastion: tool=dbastion */ SELECT * FROM t":  false,
		"WITH d AS (SELECT 1) SELECT * FROM d":           false,
	}

	for sql, want := range cases {
		assert.Equal(t, want, isWriteWithoutReturning(sql), "sql: %s", sql)
	}
}

func TestConvertSQLValue(t *testing.T) {
	assert.Equal(t, "hello", convertSQLValue([]byte("hello")).(string))
	assert.Equal(t, int64(7), convertSQLValue(int64(7)).(int64))
	assert.Zero(t, convertSQLValue(nil))
}

func TestDangerousFunctionBlocklists(t *testing.T) {
	pg := (&PostgresAdapter{}).DangerousFunctions()

	_, ok := pg["pg_terminate_backend"]
	assert.True(t, ok)

	my := (&MySQLAdapter{}).DangerousFunctions()

	_, ok = my["sleep"]
	assert.True(t, ok)

	lite := (&SQLiteAdapter{}).DangerousFunctions()

	_, ok = lite["load_extension"]
	assert.True(t, ok)
}

func TestAdapterDialects(t *testing.T) {
	assert.Equal(t, "postgres", string((&PostgresAdapter{}).Dialect()))
	assert.Equal(t, "mysql", string((&MySQLAdapter{}).Dialect()))
	assert.Equal(t, "sqlite", string((&SQLiteAdapter{}).Dialect()))
}

func TestCloseIdempotentWithoutConnect(t *testing.T) {
	assert.NoError(t, (&PostgresAdapter{}).Close())
	assert.NoError(t, (&MySQLAdapter{}).Close())
	assert.NoError(t, (&SQLiteAdapter{}).Close())
}
