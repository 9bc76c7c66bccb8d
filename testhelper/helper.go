// Package testhelper holds fixtures shared by the package tests.
package testhelper

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var (
	leadingSpaces = regexp.MustCompile(`^([ \t]+)`)
	leadingTabs   = regexp.MustCompile(`^(\t+)`)
)

func replaceTab(match string) string {
	return strings.Repeat("    ", strings.Count(match, "\t"))
}

// TrimIndent removes the indentation of the first content line from every
// line of a raw string literal and drops the leading newline.
func TrimIndent(t *testing.T, src string) string {
	t.Helper()

	lines := strings.Split(src, "\n")

	var indent string
	if len(lines) > 1 {
		indent = leadingSpaces.FindString(lines[1])
	}

	for i, line := range lines {
		line = strings.TrimPrefix(line, indent)
		lines[i] = leadingTabs.ReplaceAllStringFunc(line, replaceTab)
	}

	return strings.Join(lines[1:], "\n")
}

// WriteFile writes content below dir, creating parent directories
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}
