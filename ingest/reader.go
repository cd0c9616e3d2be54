package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// Reader loads spreadsheet exports into raw rows. Both vendor files share
// the same tabular shape: a header row followed by data rows, with the
// schema defined entirely by the header names.
type Reader struct {
	logger *utils.Logger
}

// NewReader creates a Reader with the given logger.
func NewReader(logger *utils.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadFile loads a spreadsheet file and returns one RawRow per data row.
// CSV and plain-text exports are read with encoding/csv; .xlsx workbooks
// are read from their first sheet. Every row carries all header keys, with
// "" for empty cells, so downstream schema checks can inspect any row.
func (r *Reader) ReadFile(path string) ([]models.RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return r.readXLSX(path)
	default:
		return r.readCSV(path)
	}
}

func (r *Reader) readCSV(path string) ([]models.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %q: %w", path, err)
	}
	defer f.Close()

	delim, err := sniffDelimiter(f)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %q: %w", path, err)
	}

	cr := csv.NewReader(f)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: parse %q: %w", path, err)
	}

	return r.toRows(path, records), nil
}

func (r *Reader) readXLSX(path string) ([]models.RawRow, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %q: %w", path, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("ingest: %q has no sheets", path)
	}

	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %q of %q: %w", sheets[0], path, err)
	}

	return r.toRows(path, records), nil
}

// toRows converts the rectangular record set into header-keyed rows.
func (r *Reader) toRows(path string, records [][]string) []models.RawRow {
	if len(records) == 0 {
		r.logger.Warn("[ingest] %s is empty", path)
		return nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]models.RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(models.RawRow, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	r.logger.Info("[ingest] %s: %d data rows (%d columns)", path, len(rows), len(headers))
	return rows
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// NormalizeHeader makes column matching tolerant of the cosmetic variation
// seen across exports: case, surrounding/inner whitespace and Spanish
// accents ("Número de Orden" matches "numero de orden").
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = accentFolder.Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter inspects the header line and picks ';' when the export
// uses the semicolon-delimited Latin-locale variant. The reader position is
// rewound afterwards.
func sniffDelimiter(f *os.File) (rune, error) {
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return ',', err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return ',', err
	}

	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';', nil
	}
	return ',', nil
}
