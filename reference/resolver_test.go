package reference

import (
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/spreadsheet"
)

type testSource struct {
	datasets map[Phase]*dataset.File
	sheet    *spreadsheet.Index
}

func (s *testSource) Dataset(phase Phase) (*dataset.File, bool) {
	file, ok := s.datasets[phase]
	return file, ok
}

func (s *testSource) Spreadsheet() (*spreadsheet.Index, bool) {
	return s.sheet, s.sheet != nil
}

func newTestSource(t *testing.T) *testSource {
	t.Helper()

	before := dataset.NewFile(filepath.Join(t.TempDir(), "users_before_TC01.data.json"))
	err := before.Write(dataset.NewSnapshot(dataset.NewResultSet([]dataset.Row{
		{"name": dataset.String("Alice"), "age": dataset.Int(31)},
		{"name": dataset.String("Bob"), "age": dataset.Null},
	})))
	assert.NoError(t, err)

	sheet, err := spreadsheet.New([][]string{
		{"", "TC01", "TC02"},
		{"userName", "alice", "${__beforeSteps.[0].[1].name}"},
		{"email", "", "bob@example.com"},
		{"region", "${__env.REGION}", "${__beforeSteps.[0].[i].name}"},
	})
	assert.NoError(t, err)
	assert.NoError(t, sheet.SelectColumn("TC01"))

	return &testSource{
		datasets: map[Phase]*dataset.File{PhaseBefore: before},
		sheet:    sheet,
	}
}

func env(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func TestResolve_DatasetReference(t *testing.T) {
	r := NewResolver(newTestSource(t))

	resolved, err := r.Resolve("${__beforeSteps.[0].[0].name}")
	assert.NoError(t, err)
	assert.True(t, resolved.IsPlaceholder())
	assert.False(t, resolved.Deferred)
	assert.Equal(t, "Alice", resolved.Text())

	resolved, err = r.Resolve("${__beforeSteps.[0].[0].age}")
	assert.NoError(t, err)
	assert.Equal(t, "31", resolved.Text())

	resolved, err = r.Resolve("${__beforeSteps.[0].[1].age}")
	assert.NoError(t, err)
	assert.True(t, resolved.Value.IsNull())
}

func TestResolve_IsPure(t *testing.T) {
	r := NewResolver(newTestSource(t))

	first, err := r.Resolve("${__beforeSteps.[0].[1].name}")
	assert.NoError(t, err)

	second, err := r.Resolve("${__beforeSteps.[0].[1].name}")
	assert.NoError(t, err)

	assert.True(t, first.Value.Equal(second.Value))
}

func TestResolve_Literal(t *testing.T) {
	r := NewResolver(newTestSource(t))

	resolved, err := r.Resolve("just text")
	assert.NoError(t, err)
	assert.False(t, resolved.IsPlaceholder())
	assert.Equal(t, "just text", resolved.Text())
}

func TestResolve_DeferredRowSelector(t *testing.T) {
	r := NewResolver(newTestSource(t))

	resolved, err := r.Resolve("${__beforeSteps.[0].[i].name}")
	assert.NoError(t, err)
	assert.True(t, resolved.Deferred)

	count, err := r.RowCount(*resolved.Ref)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	value, err := r.ValueAt(*resolved.Ref, 1)
	assert.NoError(t, err)
	assert.Equal(t, "Bob", value.Text())
}

func TestResolve_Env(t *testing.T) {
	r := NewResolver(newTestSource(t), WithLookupEnv(env(map[string]string{"REGION": "AU"})))

	resolved, err := r.Resolve("${__env.REGION}")
	assert.NoError(t, err)
	assert.Equal(t, "AU", resolved.Text())
	assert.NoError(t, resolved.Err())

	resolved, err = r.Resolve("${__env.MISSING}")
	assert.NoError(t, err)
	assert.True(t, resolved.Unresolved)
	assert.True(t, resolved.Value.IsNull())
	assert.Equal(t, "", resolved.Text())
	assert.IsError(t, resolved.Err(), snape2e.ErrUnresolvedReference)
}

func TestResolve_Errors(t *testing.T) {
	r := NewResolver(newTestSource(t))

	tests := []struct {
		name    string
		raw     string
		want    error
		message string
	}{
		{name: "malformed", raw: "${__beforeSteps.[0].name}", want: snape2e.ErrInvalidReference},
		{name: "phase not captured", raw: "${__afterSteps.[0].[0].name}", want: snape2e.ErrDatasetNotLoaded, message: "afterSteps"},
		{name: "unknown column", raw: "${__beforeSteps.[0].[0].email}", want: snape2e.ErrColumnNotFound, message: "beforeSteps"},
		{name: "row out of range", raw: "${__beforeSteps.[0].[5].name}", want: snape2e.ErrIndexOutOfBounds},
		{name: "result set out of range", raw: "${__beforeSteps.[3].[0].name}", want: snape2e.ErrIndexOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.raw)
			assert.IsError(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestResolve_DatasetFileMissing(t *testing.T) {
	source := newTestSource(t)
	source.datasets[PhaseAfter] = dataset.NewFile(filepath.Join(t.TempDir(), "missing.data.json"))

	_, err := NewResolver(source).Resolve("${__afterSteps.[0].[0].name}")
	assert.IsError(t, err, snape2e.ErrDatasetNotLoaded)
}

func TestParseTestData(t *testing.T) {
	r := NewResolver(newTestSource(t), WithLookupEnv(env(nil)))

	text, err := r.ParseTestData("${__beforeSteps.[0].[1].age}")
	assert.NoError(t, err)
	assert.Equal(t, "", text)

	text, err = r.ParseTestData("${__env.REGION}")
	assert.NoError(t, err)
	assert.Equal(t, "", text)

	text, err = r.ParseTestData("literal")
	assert.NoError(t, err)
	assert.Equal(t, "literal", text)

	_, err = r.ParseTestData("${__beforeSteps.[0].[i].name}")
	assert.IsError(t, err, snape2e.ErrInvalidReference)
}

func TestRowData(t *testing.T) {
	source := newTestSource(t)
	r := NewResolver(source, WithLookupEnv(env(map[string]string{"REGION": "PH"})))

	resolved, err := r.RowData("userName")
	assert.NoError(t, err)
	assert.Equal(t, "alice", resolved.Text())

	resolved, err = r.RowData("email")
	assert.NoError(t, err)
	assert.True(t, resolved.Value.IsNull())

	resolved, err = r.RowData("region")
	assert.NoError(t, err)
	assert.Equal(t, "PH", resolved.Text())

	_, err = r.RowData("phone")
	assert.IsError(t, err, snape2e.ErrRowNotFound)

	assert.NoError(t, source.sheet.SelectColumn("TC02"))

	resolved, err = r.RowData("userName")
	assert.NoError(t, err)
	assert.Equal(t, "Bob", resolved.Text())

	resolved, err = r.OptionalRowData("phone")
	assert.NoError(t, err)
	assert.True(t, resolved.Value.IsNull())
}

func TestRowData_NoSpreadsheet(t *testing.T) {
	source := newTestSource(t)
	source.sheet = nil

	_, err := NewResolver(source).RowData("userName")
	assert.IsError(t, err, snape2e.ErrNoContext)
}

func TestExpandContext(t *testing.T) {
	r := NewResolver(newTestSource(t))

	expanded, err := r.ExpandContext(
		"SELECT * FROM users WHERE name = '${__Context(beforeSteps.userName)}'" +
			" OR email = '${__Context(beforeSteps.email)}'" +
			" OR alias = '${__Context(afterSteps.userName)}'" +
			" OR nick = '${__Context(beforeSteps.nickname)}'")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE name = 'alice' OR email = '' OR alias = 'alice' OR nick = ''", expanded)

	expanded, err = r.ExpandContext("SELECT 1")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1", expanded)
}

func TestExpandContext_Invalid(t *testing.T) {
	r := NewResolver(newTestSource(t))

	_, err := r.ExpandContext("SELECT '${__Context(userName)}'")
	assert.IsError(t, err, snape2e.ErrInvalidReference)

	_, err = r.ExpandContext("SELECT '${__Context(duringSteps.userName)}'")
	assert.IsError(t, err, snape2e.ErrInvalidReference)
}

func TestExpandEnv(t *testing.T) {
	r := NewResolver(newTestSource(t), WithLookupEnv(env(map[string]string{"ADMIN_EMAIL": "admin@example.com"})))

	expanded, err := r.ExpandEnv("SELECT region, date_format FROM tenants WHERE email = '${__env.ADMIN_EMAIL}' AND note = '${__env.MISSING}'")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT region, date_format FROM tenants WHERE email = 'admin@example.com' AND note = ''", expanded)
}
