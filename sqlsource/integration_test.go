package sqlsource

import (
	"context"
	"testing"
	"time"

	"github.com/shibukawa/snape2e"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const integrationScript = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL, created_at TIMESTAMP NOT NULL);
INSERT INTO users (id, name, created_at) VALUES (1, 'Alice', '2024-03-05 10:00:00'), (2, 'Bob', '2024-03-06 11:30:00');
SELECT id, name, created_at FROM users ORDER BY id;
`

func TestPostgreSQLExecute(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, snape2e.Database{Driver: "postgres", Connection: connStr, Timeout: 30}, DefaultPoolSettings)
	require.NoError(t, err)

	defer db.Close()

	sets, err := NewExecutor(db, nil).Execute(ctx, integrationScript)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Equal(t, 2, sets[0].RowCount)

	name, err := sets[0].Value(1, "name")
	require.NoError(t, err)
	require.Equal(t, "Bob", name.Text())

	created, err := sets[0].Value(0, "created_at")
	require.NoError(t, err)
	require.Equal(t, "2024-03-05T10:00:00.000Z", created.Text())
}

func TestMySQLExecute(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MySQL integration test in short mode")
	}

	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx,
		"mysql:8.4",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("testuser"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, mysqlContainer.Terminate(ctx))
	}()

	connStr, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := Open(ctx, snape2e.Database{Driver: "mysql", Connection: connStr, Timeout: 30}, DefaultPoolSettings)
	require.NoError(t, err)

	defer db.Close()

	sets, err := NewExecutor(db, nil).Execute(ctx, integrationScript)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Equal(t, 2, sets[0].RowCount)

	id, err := sets[0].Value(0, "id")
	require.NoError(t, err)
	require.Equal(t, "1", id.Text())
}
