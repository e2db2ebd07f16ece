package engines

import (
	"database/sql"
	"fmt"
)

// ScanRows drains a database/sql row set into a normalized Result. Shared by
// the engines built on database/sql.
func ScanRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := &Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		for i, v := range values {
			// Drivers hand back []byte for text columns; normalize to string
			// so results serialize the same across engines.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	result.NumRows = len(result.Rows)
	return result, nil
}
