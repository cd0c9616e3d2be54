package services

import (
	"fmt"
	"strings"

	"customer-rfm/models"
)

// MissingColumnsError reports a structurally unreadable file: its header row
// lacks columns the pipeline cannot work without. This is the only ingest
// defect that halts the run.
type MissingColumnsError struct {
	File    string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s file is missing required columns: %s",
		e.File, strings.Join(e.Columns, ", "))
}

// checkColumns verifies that every required column key is present on the row.
// Rows out of the reader carry all header keys, so any data row stands in
// for the header.
func checkColumns(row models.RawRow, required []string, file string) error {
	var missing []string
	for _, col := range required {
		if _, ok := row[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{File: file, Columns: missing}
	}
	return nil
}
