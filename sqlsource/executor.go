package sqlsource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shibukawa/snape2e/dataset"
	"go.uber.org/zap"
)

// Executor runs setup scripts and captures what they return
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExecutor creates an executor over db
func NewExecutor(db *sql.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{db: db, logger: logger}
}

// Execute runs every statement of text on one connection, in order, and
// returns a ResultSet for each result that has columns. Statements that
// return no columns (DML, DDL) produce nothing.
func (e *Executor) Execute(ctx context.Context, text string) ([]dataset.ResultSet, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	var sets []dataset.ResultSet

	for i, stmt := range SplitStatements(text) {
		e.logger.Debug("execute setup statement", zap.Int("statement", i), zap.String("sql", stmt))

		captured, err := e.query(ctx, conn, stmt)
		if err != nil {
			return nil, fmt.Errorf("failed to execute statement %d: %w", i, err)
		}

		sets = append(sets, captured...)
	}

	return sets, nil
}

func (e *Executor) query(ctx context.Context, conn *sql.Conn, stmt string) ([]dataset.ResultSet, error) {
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []dataset.ResultSet

	for {
		columns, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to get column names: %w", err)
		}

		if len(columns) > 0 {
			rs, err := dataset.ScanRows(rows)
			if err != nil {
				return nil, err
			}

			sets = append(sets, rs)
		} else {
			for rows.Next() {
			}
		}

		if !rows.NextResultSet() {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sets, nil
}

// Snapshot executes text and wraps the results as a snapshot
func (e *Executor) Snapshot(ctx context.Context, text string) (*dataset.Snapshot, error) {
	sets, err := e.Execute(ctx, text)
	if err != nil {
		return nil, err
	}

	return dataset.NewSnapshot(sets...), nil
}

// Locale runs the locale settings query and reads the region and
// date_format columns of its first row
func (e *Executor) Locale(ctx context.Context, query string) (region, dateFormat string, err error) {
	sets, err := e.Execute(ctx, query)
	if err != nil {
		return "", "", err
	}

	snapshot := dataset.NewSnapshot(sets...)

	regionValue, err := snapshot.Value(0, 0, "region")
	if err != nil {
		return "", "", fmt.Errorf("locale settings query: %w", err)
	}

	formatValue, err := snapshot.Value(0, 0, "date_format")
	if err != nil {
		return "", "", fmt.Errorf("locale settings query: %w", err)
	}

	return regionValue.Text(), formatValue.Text(), nil
}
