package storage

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"customer-rfm/models"
)

func TestCSVReportWriterContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rfm.csv")
	w, err := NewCSVReportWriter(path)
	if err != nil {
		t.Fatalf("NewCSVReportWriter: %v", err)
	}

	profiles := []*models.RFMProfile{
		{
			Customer: &models.Customer{
				Name: "Ana Pérez", Email: "ana@mail.com", Phone: "3001234567",
				City: "Bogotá", Identity: "1234567",
			},
			Recency: 12, Frequency: 3, Monetary: 450.5,
			RecencyScore: 4, FrequencyScore: 3, MonetaryScore: 3, TotalScore: 10,
			Segment: "Potenciales Leales",
		},
		{
			Customer: &models.Customer{Name: "Luis"},
			Recency:  math.Inf(1),
			Frequency: 1,
			RecencyScore: 1, FrequencyScore: 1, MonetaryScore: 1, TotalScore: 3,
			Segment: "Compradores de Única Vez Inactivos",
		},
	}

	if err := w.WriteReport(profiles); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	header := records[0]
	if header[0] != "nombre" || header[len(header)-1] != "segmento" {
		t.Errorf("unexpected header: %v", header)
	}

	ana := records[1]
	if ana[0] != "Ana Pérez" || ana[5] != "12" || ana[7] != "450.50" || ana[11] != "10" {
		t.Errorf("unexpected row: %v", ana)
	}

	luis := records[2]
	if luis[5] != "" {
		t.Errorf("dateless customer must export empty recency, got %q", luis[5])
	}
	if luis[12] != "Compradores de Única Vez Inactivos" {
		t.Errorf("segment column: got %q", luis[12])
	}
}
