package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"customer-rfm/utils"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Número de Orden", "numero de orden"},
		{"  Correo   Electrónico ", "correo electronico"},
		{"TELÉFONO", "telefono"},
		{"ciudad", "ciudad"},
		{"Cédula", "cedula"},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.raw); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestReadCSVCommaDelimited(t *testing.T) {
	r := NewReader(utils.NewLogger())
	path := writeFile(t, "orders.csv",
		"Número de Orden,Nombre del Cliente,Fecha de Orden\n"+
			"1001,Ana Pérez,15/03/2024\n"+
			"1002,Luis Gómez,16/03/2024\n")

	rows, err := r.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["numero de orden"] != "1001" {
		t.Errorf("accented header must normalize: got %q", rows[0]["numero de orden"])
	}
	if rows[1]["nombre del cliente"] != "Luis Gómez" {
		t.Errorf("cell value: got %q", rows[1]["nombre del cliente"])
	}
}

func TestReadCSVSemicolonDelimited(t *testing.T) {
	r := NewReader(utils.NewLogger())
	path := writeFile(t, "orders.csv",
		"Numero de Orden;Nombre del Cliente;Fecha de Orden\n"+
			"1001;Ana;15/03/2024\n")

	rows, err := r.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["nombre del cliente"] != "Ana" {
		t.Errorf("semicolon export not detected: %v", rows[0])
	}
}

func TestReadCSVSkipsBlankAndShortRows(t *testing.T) {
	r := NewReader(utils.NewLogger())
	path := writeFile(t, "orders.csv",
		"Numero de Orden,Nombre del Cliente,Fecha de Orden\n"+
			"1001,Ana,15/03/2024\n"+
			",,\n"+
			"1002,Luis\n")

	rows, err := r.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank dropped), got %d", len(rows))
	}
	if got := rows[1]["fecha de orden"]; got != "" {
		t.Errorf("missing trailing cell must default to empty, got %q", got)
	}
}

func TestReadCSVEveryRowCarriesAllHeaders(t *testing.T) {
	r := NewReader(utils.NewLogger())
	path := writeFile(t, "orders.csv",
		"Numero de Orden,Canal\n1001\n")

	rows, err := r.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, ok := rows[0]["canal"]; !ok {
		t.Error("rows must carry every header key, even for absent cells")
	}
}

func TestReadEmptyFile(t *testing.T) {
	r := NewReader(utils.NewLogger())
	path := writeFile(t, "empty.csv", "")

	rows, err := r.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile on empty file: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestReadMissingFile(t *testing.T) {
	r := NewReader(utils.NewLogger())
	if _, err := r.ReadFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
