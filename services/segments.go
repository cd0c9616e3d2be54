package services

import "customer-rfm/models"

// Segment tags. The set is closed: every customer receives exactly one of
// these labels.
const (
	SegmentNewRecent      = "Nuevos Compradores Recientes"
	SegmentSingleInactive = "Compradores de Única Vez Inactivos"
	SegmentChampions      = "Campeones"
	SegmentLoyal          = "Clientes Leales"
	SegmentPotentialLoyal = "Potenciales Leales"
	SegmentCantLose       = "No Podemos Perderlos"
	SegmentLost           = "Perdidos"
	SegmentHibernating    = "Hibernando"
	SegmentOccasional     = "Compradores Ocasionales"
)

type segmentRule struct {
	tag   string
	match func(p *models.RFMProfile) bool
}

// segmentRules is evaluated top to bottom; the first match wins, so the
// order is load-bearing. Single-purchase rules come first: a frequency-1
// customer can never be a Campeón no matter how recent or valuable the one
// order was. Campeones combines the population-relative scores with an
// absolute 30-day bound because campaign timing needs a real calendar limit,
// not just a quintile rank. Perdidos sits above Hibernando — its stricter
// predicate would otherwise be unreachable.
var segmentRules = []segmentRule{
	{SegmentNewRecent, func(p *models.RFMProfile) bool {
		return p.Frequency == 1 && p.Recency <= 60
	}},
	{SegmentSingleInactive, func(p *models.RFMProfile) bool {
		return p.Frequency == 1 && p.Recency > 60
	}},
	{SegmentChampions, func(p *models.RFMProfile) bool {
		return p.RecencyScore >= 4 && p.FrequencyScore >= 4 && p.MonetaryScore >= 4 && p.Recency <= 30
	}},
	{SegmentLoyal, func(p *models.RFMProfile) bool {
		return p.RecencyScore >= 3 && p.FrequencyScore >= 4 && p.MonetaryScore >= 3
	}},
	{SegmentPotentialLoyal, func(p *models.RFMProfile) bool {
		return p.RecencyScore >= 4 && p.FrequencyScore >= 2
	}},
	{SegmentCantLose, func(p *models.RFMProfile) bool {
		return p.RecencyScore <= 2 && p.FrequencyScore >= 4 && p.MonetaryScore >= 4
	}},
	{SegmentLost, func(p *models.RFMProfile) bool {
		return p.RecencyScore == 1 && p.Recency > 365
	}},
	{SegmentHibernating, func(p *models.RFMProfile) bool {
		return p.RecencyScore <= 2 && p.Recency > 180
	}},
}

// classify runs the rule cascade. The second return value is false when no
// rule matched and the customer fell through to the default segment; the
// caller records those for schema-coverage auditing.
func classify(p *models.RFMProfile) (string, bool) {
	for _, rule := range segmentRules {
		if rule.match(p) {
			return rule.tag, true
		}
	}
	return SegmentOccasional, false
}
