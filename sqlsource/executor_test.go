package sqlsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
)

func openSQLite(t *testing.T) *Executor {
	t.Helper()

	db, err := Open(context.Background(), snape2e.Database{
		Driver:     "sqlite3",
		Connection: filepath.Join(t.TempDir(), "app.db"),
		Timeout:    5,
	}, DefaultPoolSettings)
	assert.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, score REAL);
		INSERT INTO users (id, name, email, score) VALUES (1, 'Alice', 'alice@example.com', 1.5), (2, 'Bob', NULL, 2);
		CREATE TABLE tenants (region TEXT, date_format TEXT);
		INSERT INTO tenants VALUES ('AU', 'DD/MM/YYYY');
	`)
	assert.NoError(t, err)

	return NewExecutor(db, nil)
}

func TestExecute_CapturesOnlyRowReturningStatements(t *testing.T) {
	e := openSQLite(t)

	sets, err := e.Execute(context.Background(), `
		UPDATE users SET email = 'bob@example.com' WHERE id = 2;
		SELECT id, name, email FROM users ORDER BY id;
		INSERT INTO users (id, name) VALUES (3, 'Carol');
		SELECT count(*) AS total FROM users;
	`)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(sets))

	assert.Equal(t, 2, sets[0].RowCount)

	email, err := sets[0].Value(1, "email")
	assert.NoError(t, err)
	assert.Equal(t, "bob@example.com", email.Text())

	total, err := sets[1].Value(0, "total")
	assert.NoError(t, err)
	assert.Equal(t, dataset.KindNumber, total.Kind())
	assert.Equal(t, "3", total.Text())
}

func TestSnapshot_SingleResultSet(t *testing.T) {
	e := openSQLite(t)

	snapshot, err := e.Snapshot(context.Background(), "SELECT name, score FROM users WHERE id = 1")
	assert.NoError(t, err)
	assert.Equal(t, 1, snapshot.Len())

	score, err := snapshot.Value(0, 0, "score")
	assert.NoError(t, err)
	assert.Equal(t, "1.5", score.Text())
}

func TestExecute_Error(t *testing.T) {
	e := openSQLite(t)

	_, err := e.Execute(context.Background(), "SELECT 1; SELECT * FROM missing_table")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
}

func TestLocale(t *testing.T) {
	e := openSQLite(t)

	region, dateFormat, err := e.Locale(context.Background(), "SELECT region, date_format FROM tenants")
	assert.NoError(t, err)
	assert.Equal(t, "AU", region)
	assert.Equal(t, "DD/MM/YYYY", dateFormat)

	_, _, err = e.Locale(context.Background(), "SELECT region FROM tenants")
	assert.IsError(t, err, snape2e.ErrColumnNotFound)

	_, _, err = e.Locale(context.Background(), "SELECT region, date_format FROM tenants WHERE 1 = 0")
	assert.IsError(t, err, snape2e.ErrIndexOutOfBounds)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), snape2e.Database{Driver: "oracle"}, DefaultPoolSettings)
	assert.IsError(t, err, snape2e.ErrUnsupportedDriver)
}
