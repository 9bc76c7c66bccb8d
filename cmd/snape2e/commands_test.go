package main

import (
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/reference"
	"github.com/shibukawa/snape2e/spreadsheet"
	"go.uber.org/zap/zapcore"
)

type staticSource struct {
	after *dataset.File
	sheet *spreadsheet.Index
}

func (s staticSource) Dataset(phase reference.Phase) (*dataset.File, bool) {
	if phase == reference.PhaseAfter && s.after != nil {
		return s.after, true
	}

	return nil, false
}

func (s staticSource) Spreadsheet() (*spreadsheet.Index, bool) {
	return s.sheet, s.sheet != nil
}

func TestResolveValue(t *testing.T) {
	after := dataset.NewFile(filepath.Join(t.TempDir(), "after.data.json"))
	assert.NoError(t, after.Write(dataset.NewSnapshot(dataset.NewResultSet([]dataset.Row{
		{"name": dataset.String("Alice")},
		{"name": dataset.String("Bob")},
	}))))

	sheet, err := spreadsheet.New([][]string{
		{"", "TC01"},
		{"userName", "${__afterSteps.[0].[1].name}"},
		{"names", "${__afterSteps.[0].[i].name}"},
	})
	assert.NoError(t, err)
	assert.NoError(t, sheet.SelectColumn("TC01"))

	resolver := reference.NewResolver(staticSource{after: after, sheet: sheet},
		reference.WithLookupEnv(func(string) (string, bool) { return "", false }))

	text, err := resolveValue(resolver, "userName")
	assert.NoError(t, err)
	assert.Equal(t, `"Bob"`, text)

	text, err = resolveValue(resolver, "names")
	assert.NoError(t, err)
	assert.Equal(t, `["Alice" "Bob"]`, text)

	text, err = resolveValue(resolver, "${__afterSteps.[0].[0].name}")
	assert.NoError(t, err)
	assert.Equal(t, `"Alice"`, text)

	_, err = resolveValue(resolver, "${__env.MISSING}")
	assert.IsError(t, err, snape2e.ErrUnresolvedReference)

	_, err = resolveValue(resolver, "${__beforeSteps.[0].[0].name}")
	assert.IsError(t, err, snape2e.ErrDatasetNotLoaded)
}

func TestParsePhase(t *testing.T) {
	phase, err := parsePhase("after")
	assert.NoError(t, err)
	assert.Equal(t, reference.PhaseAfter, phase)

	_, err = parsePhase("during")
	assert.IsError(t, err, ErrInvalidPhase)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(snape2e.LoggingConfig{Level: "warn"}, &Context{})
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	logger, err = newLogger(snape2e.LoggingConfig{Level: "warn", JSON: true}, &Context{Verbose: true})
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger(snape2e.LoggingConfig{Level: "loud"}, &Context{})
	assert.Error(t, err)
}

func TestCLIParse(t *testing.T) {
	parser, err := kong.New(&CLI, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	assert.NoError(t, err)

	ctx, err := parser.Parse([]string{"capture", "Create User - TC01", "--phase", "after", "--dir", "testdata"})
	assert.NoError(t, err)
	assert.Equal(t, "capture <scenario>", ctx.Command())
	assert.Equal(t, "after", CLI.Capture.Phase)
	assert.Equal(t, "Create User - TC01", CLI.Capture.Scenario)

	_, err = parser.Parse([]string{"capture", "Create User", "--phase", "during"})
	assert.Error(t, err)
}
