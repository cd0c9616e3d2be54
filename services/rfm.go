package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// RFMEngine computes recency/frequency/monetary metrics, quintile scores and
// segment assignments. It is a pure function of its inputs: no state is kept
// between runs, and two runs over the same customers with the same reference
// instant produce identical results.
type RFMEngine struct {
	logger         *utils.Logger
	maxConcurrency int
}

// NewRFMEngine creates an engine that computes per-customer metrics with up
// to maxConcurrency workers. Customers are independent, so the parallel
// stage needs no locking.
func NewRFMEngine(logger *utils.Logger, maxConcurrency int) *RFMEngine {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &RFMEngine{logger: logger, maxConcurrency: maxConcurrency}
}

// Analyze runs the four-stage pipeline: metrics, quintile scoring,
// segmentation, per-segment aggregation. With searchTerms, monetary becomes
// the spend on line items whose SKU or description contains one of the terms
// (case-insensitive); scores are then relative to the filtered population
// and not comparable to an unfiltered run.
func (e *RFMEngine) Analyze(customers []*models.Customer, ref time.Time, searchTerms []string) *models.AnalysisResult {
	result := &models.AnalysisResult{
		Stats: make(map[string]*models.SegmentStats),
	}
	if len(customers) == 0 {
		return result
	}

	terms := make([]string, 0, len(searchTerms))
	for _, t := range searchTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}

	// Stage 1: metrics, one profile slot per customer so no locking needed.
	profiles := make([]*models.RFMProfile, len(customers))
	pool := utils.NewWorkerPool(e.maxConcurrency, 0)
	for i, c := range customers {
		i, c := i, c
		pool.Submit(func() {
			profiles[i] = computeMetrics(c, ref, terms)
		})
	}
	pool.Wait()

	// Stage 2: quintile scores.
	e.score(profiles)

	// Stage 3: segmentation.
	for _, p := range profiles {
		tag, matched := classify(p)
		p.Segment = tag
		if !matched {
			result.FallbackCount++
			e.logger.Debug("[rfm] No segment rule matched %q (R%d F%d M%d), defaulting to %s",
				p.Customer.Name, p.RecencyScore, p.FrequencyScore, p.MonetaryScore, SegmentOccasional)
		}
	}

	// Stage 4: per-segment aggregation.
	result.TotalCustomers = len(profiles)
	result.Profiles = profiles
	for _, p := range profiles {
		stats, ok := result.Stats[p.Segment]
		if !ok {
			stats = &models.SegmentStats{}
			result.Stats[p.Segment] = stats
		}
		stats.Count++
		stats.Revenue += p.Monetary
		stats.Members = append(stats.Members, p)
	}
	for _, stats := range result.Stats {
		stats.Percentage = round2(float64(stats.Count) / float64(result.TotalCustomers) * 100)
	}

	if result.FallbackCount > 0 {
		e.logger.Warn("[rfm] %d of %d customers hit the fallback segment", result.FallbackCount, result.TotalCustomers)
	}
	return result
}

// computeMetrics derives the raw R/F/M values for one customer. Recency is
// days since the most recent order with a valid date, +Inf when no order has
// one. A most-recent date after the reference instant clamps to 0.
func computeMetrics(c *models.Customer, ref time.Time, terms []string) *models.RFMProfile {
	p := &models.RFMProfile{
		Customer:  c,
		Recency:   math.Inf(1),
		Frequency: len(c.Orders),
	}

	var latest *time.Time
	for _, o := range c.Orders {
		if o.OrderDate != nil && (latest == nil || o.OrderDate.After(*latest)) {
			latest = o.OrderDate
		}

		if len(terms) == 0 {
			p.Monetary += o.TotalAmount
			continue
		}
		for _, item := range o.Items {
			if matchesTerms(item, terms) {
				p.Monetary += item.Total
			}
		}
	}

	if latest != nil {
		days := ref.Sub(*latest).Hours() / 24
		if days < 0 {
			days = 0
		}
		p.Recency = math.Floor(days)
	}
	return p
}

func matchesTerms(item models.LineItem, terms []string) bool {
	sku := strings.ToLower(item.SKU)
	desc := strings.ToLower(item.Description)
	for _, t := range terms {
		if strings.Contains(sku, t) || strings.Contains(desc, t) {
			return true
		}
	}
	return false
}

// score assigns the 1–5 quintile scores. Frequency and monetary score
// directly (bigger is better); recency is inverted (smaller is better).
// Customers without a valid order date are pinned to recency score 1 and
// excluded from the recency cutpoint population, so a dataset full of
// dateless customers cannot drag the cutpoints to +Inf.
func (e *RFMEngine) score(profiles []*models.RFMProfile) {
	recencyVals := make([]float64, 0, len(profiles))
	freqVals := make([]float64, len(profiles))
	monVals := make([]float64, len(profiles))

	for i, p := range profiles {
		if !math.IsInf(p.Recency, 1) {
			recencyVals = append(recencyVals, p.Recency)
		}
		freqVals[i] = float64(p.Frequency)
		monVals[i] = p.Monetary
	}

	recencyCuts := cutpoints(recencyVals)
	freqCuts := cutpoints(freqVals)
	monCuts := cutpoints(monVals)

	for _, p := range profiles {
		if math.IsInf(p.Recency, 1) {
			p.RecencyScore = 1
		} else {
			p.RecencyScore = scoreInverted(p.Recency, recencyCuts)
		}
		p.FrequencyScore = scoreDirect(float64(p.Frequency), freqCuts)
		p.MonetaryScore = scoreDirect(p.Monetary, monCuts)
		p.TotalScore = p.RecencyScore + p.FrequencyScore + p.MonetaryScore
	}
}

// cutpoints returns the 20/40/60/80th percentile values (nearest rank) of
// vals. Small populations simply produce repeated cutpoints, which keeps
// scoring monotonic without special cases.
func cutpoints(vals []float64) [4]float64 {
	var cuts [4]float64
	n := len(vals)
	if n == 0 {
		return cuts
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for k := 1; k <= 4; k++ {
		idx := k * n / 5
		if idx >= n {
			idx = n - 1
		}
		cuts[k-1] = sorted[idx]
	}
	return cuts
}

// scoreDirect maps v into 1..5: one point per cutpoint strictly below v.
func scoreDirect(v float64, cuts [4]float64) int {
	score := 1
	for _, c := range cuts {
		if v > c {
			score++
		}
	}
	return score
}

// scoreInverted maps v into 1..5 with smaller values scoring higher.
func scoreInverted(v float64, cuts [4]float64) int {
	score := 1
	for _, c := range cuts {
		if v < c {
			score++
		}
	}
	return score
}

// PrintSummary renders the per-segment breakdown to the terminal.
func (e *RFMEngine) PrintSummary(r *models.AnalysisResult) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 SEGMENTACIÓN RFM\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  Total de clientes analizados : \033[1m%d\033[0m\n\n", r.TotalCustomers)

	if r.TotalCustomers == 0 {
		fmt.Printf("  Sin datos para analizar\n\n")
		return
	}

	type segLine struct {
		tag   string
		stats *models.SegmentStats
	}
	lines := make([]segLine, 0, len(r.Stats))
	for tag, stats := range r.Stats {
		lines = append(lines, segLine{tag, stats})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].stats.Count != lines[j].stats.Count {
			return lines[i].stats.Count > lines[j].stats.Count
		}
		return lines[i].tag < lines[j].tag
	})

	fmt.Printf("  %-36s %8s %8s %14s\n", "Segmento", "Clientes", "%", "Ingresos")
	fmt.Printf("  %s\n", thin)
	for _, line := range lines {
		fmt.Printf("  %-36s \033[1m%8d\033[0m %7.1f%% \033[1;32m$%13.2f\033[0m\n",
			line.tag, line.stats.Count, line.stats.Percentage, line.stats.Revenue)
	}

	if r.FallbackCount > 0 {
		fmt.Printf("\n  %d clientes sin regla de segmento (asignados a %s)\n",
			r.FallbackCount, SegmentOccasional)
	}
	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
