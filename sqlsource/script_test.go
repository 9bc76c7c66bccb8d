package sqlsource

import (
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/testhelper"
)

func TestParseScript(t *testing.T) {
	script := ParseScript(testhelper.TrimIndent(t, `
		SELECT 'ignored';
		-- beforeTestSteps
		SELECT name FROM users
		WHERE name = '${__Context(beforeSteps.userName)}';
		--afterTestSteps
		SELECT count(*) AS total FROM users;
		`))

	assert.Equal(t, []string{BeforeSection, AfterSection}, script.Labels())

	before, err := script.Section(BeforeSection)
	assert.NoError(t, err)
	assert.Equal(t, "SELECT name FROM users\nWHERE name = '${__Context(beforeSteps.userName)}';", before)

	after, err := script.Section(AfterSection)
	assert.NoError(t, err)
	assert.Equal(t, "SELECT count(*) AS total FROM users;", after)

	_, err = script.Section("cleanup")
	assert.IsError(t, err, snape2e.ErrStatementNotFound)
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := testhelper.WriteFile(t, dir, "create_user/create_user.sql", "-- beforeTestSteps\nSELECT 1 AS one;\n")

	script, err := LoadScript(path)
	assert.NoError(t, err)

	body, err := script.Section(BeforeSection)
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1 AS one;", body)

	_, err = LoadScript(filepath.Join(dir, "missing.sql"))
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{name: "single without semicolon", sql: "SELECT 1", want: []string{"SELECT 1"}},
		{name: "two statements", sql: "SELECT 1; SELECT 2;", want: []string{"SELECT 1", "SELECT 2"}},
		{name: "semicolon in string", sql: "SELECT 'a;b'; SELECT 2", want: []string{"SELECT 'a;b'", "SELECT 2"}},
		{name: "escaped quote", sql: "SELECT 'it''s;'; SELECT 2", want: []string{"SELECT 'it''s;'", "SELECT 2"}},
		{name: "quoted identifier", sql: `SELECT "a;b" FROM t`, want: []string{`SELECT "a;b" FROM t`}},
		{name: "line comment", sql: "SELECT 1; -- trailing; comment\nSELECT 2", want: []string{"SELECT 1", "SELECT 2"}},
		{name: "block comment", sql: "SELECT /* ; */ 1;", want: []string{"SELECT  1"}},
		{name: "empty statements", sql: ";;\n;", want: nil},
		{
			name: "dollar quoted body",
			sql:  "CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql; SELECT f()",
			want: []string{"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql", "SELECT f()"},
		},
		{
			name: "tagged dollar quote",
			sql:  "DO $body$ BEGIN PERFORM 'x;$$'; END $body$; SELECT 2",
			want: []string{"DO $body$ BEGIN PERFORM 'x;$$'; END $body$", "SELECT 2"},
		},
		{name: "positional parameter", sql: "SELECT $1; SELECT 2", want: []string{"SELECT $1", "SELECT 2"}},
		{name: "unterminated dollar quote", sql: "SELECT $$a;b", want: []string{"SELECT $$a;b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.sql))
		})
	}
}

func TestDriverName(t *testing.T) {
	for driver, want := range map[string]string{
		"postgres": "pgx",
		"pgx":      "pgx",
		"mysql":    "mysql",
		"sqlite":   "sqlite3",
		"sqlite3":  "sqlite3",
	} {
		got, err := DriverName(driver)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := DriverName("oracle")
	assert.IsError(t, err, snape2e.ErrUnsupportedDriver)
}
