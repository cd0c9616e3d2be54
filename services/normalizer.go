package services

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// Column contract for the order-report export. Headers are matched after
// ingest.NormalizeHeader, so "Número de Orden" and "numero de orden" are the
// same column. Renames on the exporter side must be reflected here.
const (
	ColOrderID  = "numero de orden"
	ColName     = "nombre del cliente"
	ColEmail    = "correo electronico"
	ColPhone    = "telefono"
	ColCity     = "ciudad"
	ColIdentity = "cedula"
	ColDate     = "fecha de orden"
	ColChannel  = "canal"
)

// requiredOrderColumns must all be present in the header row; a file missing
// any of them is structurally unreadable.
var requiredOrderColumns = []string{ColOrderID, ColName, ColDate}

// dateLayouts are the formats the order-report export is known to emit.
var dateLayouts = []string{
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer transforms raw order-report rows into cleaned precursor records.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize cleans the order-report rows. Row order is preserved. Rows with
// defects keep their place with defaults: an unparseable date leaves
// OrderDate nil (the row is later excluded from date-dependent computations
// only), a duplicate order id keeps the first occurrence. Only a file whose
// header lacks a required column fails outright.
func (n *Normalizer) Normalize(rows []models.RawRow) ([]*models.OrderReportRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if err := checkColumns(rows[0], requiredOrderColumns, "order report"); err != nil {
		return nil, err
	}

	seen := utils.NewKeySet()
	result := make([]*models.OrderReportRow, 0, len(rows))

	var badDates, dupes int
	for _, row := range rows {
		rawID := strings.TrimSpace(row[ColOrderID])
		if rawID == "" {
			n.logger.Warn("[normalizer] Dropping row with empty order id (customer %q)", row[ColName])
			continue
		}
		if !seen.Add(rawID) {
			n.logger.Debug("[normalizer] Duplicate order id skipped: %s", rawID)
			dupes++
			continue
		}

		date := ParseDate(row[ColDate])
		if date == nil {
			n.logger.Debug("[normalizer] Unparseable date %q on order %s", row[ColDate], rawID)
			badDates++
		}

		result = append(result, &models.OrderReportRow{
			OrderID:      rawID,
			RawID:        rawID,
			CustomerName: NormalizeText(row[ColName]),
			Email:        NormalizeEmail(row[ColEmail]),
			Phone:        NormalizePhone(row[ColPhone]),
			City:         NormalizeText(row[ColCity]),
			Identity:     NormalizeDigits(row[ColIdentity]),
			Channel:      NormalizeText(row[ColChannel]),
			OrderDate:    date,
		})
	}

	n.logger.Info("[normalizer] Normalized %d → %d orders (%d duplicates, %d invalid dates)",
		len(rows), len(result), dupes, badDates)
	return result, nil
}

// ParseDate tries the documented export formats in order and returns nil
// when none matches. Bad dates are never coerced to the current time.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// ParseAmount converts a locale-formatted money string to a float. Currency
// symbols and spaces are stripped. When both '.' and ',' appear, the
// rightmost acts as the decimal separator. A single separator followed by
// exactly three digits is treated as a thousands separator ("3,500" → 3500),
// otherwise as decimal ("12,5" → 12.5). Unparseable input yields 0.
func ParseAmount(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveLoneSeparator(s, ",")
	case lastDot >= 0:
		s = resolveLoneSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// resolveLoneSeparator decides whether the only separator kind present is a
// thousands or a decimal separator and rewrites s into ParseFloat form.
func resolveLoneSeparator(s, sep string) string {
	last := strings.LastIndex(s, sep)
	trailing := len(s) - last - 1
	if strings.Count(s, sep) > 1 || (trailing == 3 && last > 0) {
		// thousands grouping: 1,234,567 or 3,500
		return strings.ReplaceAll(s, sep, "")
	}
	if sep == "," {
		return strings.ReplaceAll(s, ",", ".")
	}
	return s
}

// NormalizeText strips leading/trailing whitespace and collapses internal whitespace.
func NormalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// NormalizeEmail lower-cases and trims so that two spellings of the same
// address collapse to one grouping key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps digits only, dropping formatting like +, spaces and dashes.
func NormalizePhone(s string) string {
	return NormalizeDigits(s)
}

// NormalizeDigits strips every non-digit rune.
func NormalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
