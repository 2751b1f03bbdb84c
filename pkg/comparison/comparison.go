package comparison

import (
	"fmt"
	"math"
	"sort"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/validation"
	"github.com/xhad/quotes/pkg/processor"
)

var categoryRank = map[models.Category]int{
	models.CategoryCurrent:      0,
	models.CategoryRenegotiated: 1,
	models.CategoryAlternative:  2,
}

// Build lays the documents side by side, one column per document and one row per coverage.
// Each document is compared on its first plan option, the same one its total comes from.
func Build(docs []models.ParsedBenefitsDocument) *models.Comparison {
	ordered := append([]models.ParsedBenefitsDocument(nil), docs...)
	for i := range ordered {
		ordered[i].Category = categoryOf(ordered[i].Category)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := categoryRank[ordered[i].Category], categoryRank[ordered[j].Category]
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Carrier < ordered[j].Carrier
	})

	cmp := &models.Comparison{Columns: make([]models.ComparisonColumn, len(ordered))}
	premiums := make(map[string][]*float64)

	for col, doc := range ordered {
		cmp.Columns[col] = models.ComparisonColumn{
			DocumentID:   doc.ID,
			Carrier:      doc.Carrier,
			Category:     doc.Category,
			MonthlyTotal: doc.TotalMonthlyPremium,
			AnnualTotal:  round(doc.TotalMonthlyPremium * 12),
		}
		if len(doc.PlanOptions) == 0 {
			continue
		}
		for _, c := range doc.PlanOptions[0].Coverages {
			label := rowLabel(c)
			cells, ok := premiums[label]
			if !ok {
				cells = make([]*float64, len(ordered))
				premiums[label] = cells
			}
			if cells[col] == nil {
				cells[col] = new(float64)
			}
			*cells[col] = round(*cells[col] + c.MonthlyPremium)
		}
	}

	for label, cells := range premiums {
		cmp.Rows = append(cmp.Rows, models.ComparisonRow{Coverage: label, Premiums: cells})
	}
	sort.Slice(cmp.Rows, func(i, j int) bool {
		ri, rj := rowRank(cmp.Rows[i].Coverage), rowRank(cmp.Rows[j].Coverage)
		if ri != rj {
			return ri < rj
		}
		return cmp.Rows[i].Coverage < cmp.Rows[j].Coverage
	})

	applyDifferences(cmp)
	return cmp
}

// ValidateDocuments rejects documents with an unknown category. An empty category is allowed.
func ValidateDocuments(docs []models.ParsedBenefitsDocument) validation.Errors {
	var errs validation.Errors
	for i, d := range docs {
		if _, err := models.ParseCategory(string(d.Category)); err != nil {
			errs.Add(fmt.Sprintf("documents[%d].category", i), "%v", err)
		}
	}
	return errs
}

// categoryOf maps an empty or unknown category to alternative.
func categoryOf(c models.Category) models.Category {
	parsed, err := models.ParseCategory(string(c))
	if err != nil {
		return models.CategoryAlternative
	}
	return parsed
}

// applyDifferences compares every column against the first current quote, if there is one.
func applyDifferences(cmp *models.Comparison) {
	if len(cmp.Columns) == 0 || cmp.Columns[0].Category != models.CategoryCurrent {
		return
	}
	base := cmp.Columns[0].MonthlyTotal
	for i := range cmp.Columns {
		amount := round(cmp.Columns[i].MonthlyTotal - base)
		cmp.Columns[i].DiffAmount = &amount
		if base != 0 {
			percent := math.Round(amount/base*10000) / 100
			cmp.Columns[i].DiffPercent = &percent
		}
	}
}

// Current returns the column of the current quote.
func Current(cmp *models.Comparison) (*models.ComparisonColumn, bool) {
	for i := range cmp.Columns {
		if cmp.Columns[i].Category == models.CategoryCurrent {
			return &cmp.Columns[i], true
		}
	}
	return nil, false
}

// Cheapest returns the lowest priced option that is not the current quote.
func Cheapest(cmp *models.Comparison) (*models.ComparisonColumn, bool) {
	var best *models.ComparisonColumn
	for i := range cmp.Columns {
		c := &cmp.Columns[i]
		if c.Category == models.CategoryCurrent || c.MonthlyTotal <= 0 {
			continue
		}
		if best == nil || c.MonthlyTotal < best.MonthlyTotal {
			best = c
		}
	}
	return best, best != nil
}

func rowLabel(c models.Coverage) string {
	category := c.Category
	if category == "" {
		category = processor.CanonicalCoverage(c.Name)
	}
	if category == processor.OtherCoverage {
		return c.Name
	}
	return category
}

func rowRank(label string) int {
	for i, name := range processor.CoverageOrder {
		if name == label {
			return i
		}
	}
	return len(processor.CoverageOrder)
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
