package db

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteRunsMigrationsOnce(t *testing.T) {
	database, err := Open(DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.RunMigrations(context.Background()))
	require.NoError(t, database.RunMigrations(context.Background()))

	var n int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)

	_, err = database.Exec("INSERT INTO preferences (phone_number, user_id, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)", "+263770000000", "u1")
	assert.NoError(t, err)
	assert.Equal(t, DriverSQLite, database.Driver())
	assert.NoError(t, database.HealthCheck(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	assert.Error(t, err)

	_, err = Open(DriverSQLite, "", nil)
	assert.Error(t, err)
}

func TestReadMigrationsOrdersAndSkipsUnnumbered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":   {Data: []byte("SELECT 1")},
		"m/002_first.sql":   {Data: []byte("SELECT 2")},
		"m/readme.sql":      {Data: []byte("SELECT 3")},
		"m/abc_invalid.sql": {Data: []byte("SELECT 4")},
		"m/003_notes.txt":   {Data: []byte("x")},
	}
	migrations, err := readMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Number)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Number)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}
