package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"customer-rfm/models"
)

// reportHeader is the export contract: one row per customer, one column per
// RFM attribute. Downstream spreadsheets key on these names.
var reportHeader = []string{
	"nombre", "correo", "telefono", "ciudad", "cedula",
	"recencia_dias", "frecuencia", "monetario",
	"score_r", "score_f", "score_m", "score_total", "segmento",
}

// CSVReportWriter writes the per-customer RFM export to a CSV file.
// It is safe for concurrent use.
type CSVReportWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVReportWriter creates (or truncates) the CSV file at the given path
// and writes the header row. Intermediate directories are created
// automatically.
func NewCSVReportWriter(path string) (*CSVReportWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVReportWriter{file: f, writer: w}, nil
}

// WriteReport appends one row per scored customer. Customers without a valid
// order date get an empty recency column rather than a sentinel number.
func (c *CSVReportWriter) WriteReport(profiles []*models.RFMProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range profiles {
		recency := ""
		if !math.IsInf(p.Recency, 1) {
			recency = strconv.Itoa(int(p.Recency))
		}

		row := []string{
			p.Customer.Name,
			p.Customer.Email,
			p.Customer.Phone,
			p.Customer.City,
			p.Customer.Identity,
			recency,
			strconv.Itoa(p.Frequency),
			strconv.FormatFloat(p.Monetary, 'f', 2, 64),
			strconv.Itoa(p.RecencyScore),
			strconv.Itoa(p.FrequencyScore),
			strconv.Itoa(p.MonetaryScore),
			strconv.Itoa(p.TotalScore),
			p.Segment,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVReportWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
