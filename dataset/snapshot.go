package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shibukawa/snape2e"
)

var errInvalidValue = errors.New("invalid dataset value")

// Row maps a column name to its value
type Row map[string]Value

// ResultSet is one tabular outcome of a single executed query
type ResultSet struct {
	RowCount int   `json:"rowCount"`
	Rows     []Row `json:"rows"`
}

// NewResultSet builds a ResultSet whose RowCount matches its rows
func NewResultSet(rows []Row) ResultSet {
	if rows == nil {
		rows = []Row{}
	}

	return ResultSet{RowCount: len(rows), Rows: rows}
}

// Value returns the value of column at row
func (rs ResultSet) Value(row int, column string) (Value, error) {
	if row < 0 || row >= rs.RowCount {
		return Null, fmt.Errorf("%w: row %d of %d", snape2e.ErrIndexOutOfBounds, row, rs.RowCount)
	}

	value, ok := rs.Rows[row][column]
	if !ok {
		return Null, fmt.Errorf("%w: '%s'", snape2e.ErrColumnNotFound, column)
	}

	return value, nil
}

func (rs ResultSet) validate() error {
	if rs.RowCount != len(rs.Rows) {
		return fmt.Errorf("%w: rowCount %d does not match %d rows", snape2e.ErrInvalidSnapshot, rs.RowCount, len(rs.Rows))
	}

	return nil
}

// Snapshot is the ordered list of result sets captured for one phase.
// A snapshot holding exactly one result set is persisted as a bare object,
// otherwise as an array, matching what the data-setup query produced.
type Snapshot struct {
	Sets []ResultSet
}

// NewSnapshot creates a snapshot from result sets in execution order
func NewSnapshot(sets ...ResultSet) *Snapshot {
	return &Snapshot{Sets: sets}
}

// Len returns the number of result sets
func (s *Snapshot) Len() int {
	return len(s.Sets)
}

// ResultSet returns the result set at index
func (s *Snapshot) ResultSet(index int) (ResultSet, error) {
	if index < 0 || index >= len(s.Sets) {
		return ResultSet{}, fmt.Errorf("%w: result set %d of %d", snape2e.ErrIndexOutOfBounds, index, len(s.Sets))
	}

	return s.Sets[index], nil
}

// RowCount returns the row count of the result set at index
func (s *Snapshot) RowCount(index int) (int, error) {
	rs, err := s.ResultSet(index)
	if err != nil {
		return 0, err
	}

	return rs.RowCount, nil
}

// Value returns one cell of the snapshot
func (s *Snapshot) Value(resultSet, row int, column string) (Value, error) {
	rs, err := s.ResultSet(resultSet)
	if err != nil {
		return Null, err
	}

	return rs.Value(row, column)
}

// MarshalJSON implements json.Marshaler
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Sets) == 1 {
		return json.Marshal(s.Sets[0])
	}

	sets := s.Sets
	if sets == nil {
		sets = []ResultSet{}
	}

	return json.Marshal(sets)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty document", snape2e.ErrInvalidSnapshot)
	}

	var sets []ResultSet

	switch data[0] {
	case '{':
		var rs ResultSet
		if err := json.Unmarshal(data, &rs); err != nil {
			return fmt.Errorf("%w: %w", snape2e.ErrInvalidSnapshot, err)
		}

		sets = []ResultSet{rs}
	case '[':
		if err := json.Unmarshal(data, &sets); err != nil {
			return fmt.Errorf("%w: %w", snape2e.ErrInvalidSnapshot, err)
		}
	default:
		return fmt.Errorf("%w: expected object or array", snape2e.ErrInvalidSnapshot)
	}

	for i, rs := range sets {
		if rs.Rows == nil {
			sets[i].Rows = []Row{}
		}

		if err := sets[i].validate(); err != nil {
			return fmt.Errorf("result set %d: %w", i, err)
		}
	}

	s.Sets = sets

	return nil
}

// File is a snapshot persisted on disk. The document is read lazily on the
// first lookup and cached afterwards.
type File struct {
	path string

	mu       sync.Mutex
	snapshot *Snapshot
}

// NewFile returns a handle to the snapshot stored at path
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Write persists the snapshot as compact JSON and caches it
func (f *File) Write(snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.snapshot = snapshot
	f.mu.Unlock()

	return nil
}

// Snapshot returns the snapshot, reading the file on first use
func (f *File) Snapshot() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.snapshot != nil {
		return f.snapshot, nil
	}

	snapshot, err := ReadSnapshot(f.path)
	if err != nil {
		return nil, err
	}

	f.snapshot = snapshot

	return snapshot, nil
}

// ReadSnapshot reads and decodes a snapshot document
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", snape2e.ErrDatasetNotLoaded, path)
		}

		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}

	return &snapshot, nil
}
