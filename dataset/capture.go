package dataset

import (
	"database/sql"
	"fmt"
)

// ScanRows drains rows into a ResultSet. Column order is not kept; rows are
// addressed by column name only.
func ScanRows(rows *sql.Rows) (ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to get column names: %w", err)
	}

	var data []Row

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))

	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		err := rows.Scan(valuePtrs...)
		if err != nil {
			return ResultSet{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = FromSQL(values[i])
		}

		data = append(data, row)
	}

	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("error during row iteration: %w", err)
	}

	return NewResultSet(data), nil
}
