package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shibukawa/snape2e/reference"
)

var whiteSpaces = regexp.MustCompile(`\s+`)

// ParseScenarioName splits "Create User - TC01" into the base name
// "create_user" and the test case "TC01". A name without "-" has no test case.
func ParseScenarioName(name string) (base, testCase string) {
	head, tail, _ := strings.Cut(name, "-")

	base = whiteSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(head)), "_")
	testCase = strings.TrimSpace(tail)

	return base, testCase
}

// Paths are the files belonging to one scenario
type Paths struct {
	Base        string
	Dir         string
	Script      string
	Spreadsheet string
}

// spreadsheet extensions in lookup order
var spreadsheetExts = []string{".xlsx", ".xlsm", ".csv"}

// ResolvePaths locates the setup script and spreadsheet of a scenario under
// <dir>/<base>/. Both files must exist.
func ResolvePaths(dir, base string) (Paths, error) {
	if base == "" {
		return Paths{}, fmt.Errorf("%w: empty scenario name", ErrScenarioFiles)
	}

	scenarioDir := filepath.Join(dir, base)
	paths := Paths{
		Base:   base,
		Dir:    scenarioDir,
		Script: filepath.Join(scenarioDir, base+".sql"),
	}

	if _, err := os.Stat(paths.Script); err != nil {
		return Paths{}, fmt.Errorf("%w: setup script %s: %w", ErrScenarioFiles, paths.Script, err)
	}

	for _, ext := range spreadsheetExts {
		candidate := filepath.Join(scenarioDir, base+ext)
		if _, err := os.Stat(candidate); err == nil {
			paths.Spreadsheet = candidate
			break
		}
	}

	if paths.Spreadsheet == "" {
		return Paths{}, fmt.Errorf("%w: no spreadsheet for %s in %s", ErrScenarioFiles, base, scenarioDir)
	}

	return paths, nil
}

// SnapshotPath returns <resultsDir>/<base>/<base>_<before|after>_<testCase>.data.json
func SnapshotPath(resultsDir, base string, phase reference.Phase, testCase string) string {
	side := "before"
	if phase == reference.PhaseAfter {
		side = "after"
	}

	return filepath.Join(resultsDir, base, fmt.Sprintf("%s_%s_%s.data.json", base, side, testCase))
}
