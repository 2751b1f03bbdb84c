package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/xhad/quotes/internal/models"
)

// ErrEmptyDocument is returned when a parsed quote carries no benefit or premium data.
var ErrEmptyDocument = errors.New("no benefit data found in document")

const OtherCoverage = "Other"

// Ordered: the first alias that matches wins.
var coverageAliases = []struct {
	canonical string
	aliases   []string
}{
	{"Dependent Life", []string{"dependent life", "dependant life", "dep life", "spousal life", "child life"}},
	{"Life", []string{"life", "basic life", "employee life", "optional life"}},
	{"AD&D", []string{"ad&d", "ad & d", "ad and d", "accidental death"}},
	{"STD", []string{"std", "short term disability", "weekly indemnity"}},
	{"LTD", []string{"ltd", "long term disability"}},
	{"Critical Illness", []string{"critical illness", "ci"}},
	{"HSA", []string{"hsa", "health spending", "healthcare spending", "health care spending"}},
	{"Extended Health", []string{"extended health", "ehc", "health care", "healthcare", "medical", "health"}},
	{"Dental", []string{"dental"}},
	{"Vision", []string{"vision", "optical"}},
	{"EAP", []string{"eap", "employee assistance", "employee and family assistance", "efap"}},
}

// CoverageOrder is the row order of a comparison table.
var CoverageOrder = []string{
	"Life", "Dependent Life", "AD&D", "STD", "LTD", "Critical Illness",
	"Extended Health", "HSA", "Dental", "Vision", "EAP", OtherCoverage,
}

// CanonicalCoverage maps a carrier specific benefit label to its comparison category.
func CanonicalCoverage(name string) string {
	normalized := " " + normalizeLabel(name) + " "
	for _, c := range coverageAliases {
		for _, alias := range c.aliases {
			if strings.Contains(normalized, " "+alias+" ") {
				return c.canonical
			}
		}
	}
	return OtherCoverage
}

func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseMoney parses amounts such as "$1,234.56", "1 234.56 CAD" or "(12.00)".
func ParseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	upper := strings.ToUpper(s)
	for _, code := range []string{"CAD", "USD", "/MONTH", "/MO", "PER MONTH"} {
		upper = strings.ReplaceAll(upper, code, "")
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '$' || r == ',' || unicode.IsSpace(r):
			return -1
		}
		return r
	}, upper)
	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[1:]
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize canonicalizes coverage names, fills derivable premiums and recomputes totals.
// The document total is the monthly total of its first plan option.
func Normalize(doc *models.ParsedBenefitsDocument) error {
	doc.Carrier = strings.Join(strings.Fields(doc.Carrier), " ")
	if doc.Carrier == "" {
		doc.Carrier = "Unknown carrier"
	}

	plans := doc.PlanOptions[:0]
	for i, plan := range doc.PlanOptions {
		plan.Name = strings.TrimSpace(plan.Name)
		if plan.Name == "" {
			plan.Name = fmt.Sprintf("Option %d", i+1)
		}
		plan.Coverages = normalizeCoverages(plan.Coverages)
		if len(plan.Coverages) == 0 {
			continue
		}

		total := 0.0
		for _, c := range plan.Coverages {
			total += c.MonthlyPremium
		}
		plan.MonthlyTotal = roundCents(total)
		plans = append(plans, plan)
	}
	doc.PlanOptions = plans

	if len(doc.PlanOptions) > 0 {
		doc.TotalMonthlyPremium = doc.PlanOptions[0].MonthlyTotal
	} else {
		doc.TotalMonthlyPremium = roundCents(doc.TotalMonthlyPremium)
	}

	if len(doc.PlanOptions) == 0 && doc.TotalMonthlyPremium == 0 {
		return ErrEmptyDocument
	}
	return nil
}

func normalizeCoverages(coverages []models.Coverage) []models.Coverage {
	var out []models.Coverage
	index := make(map[string]int)

	for _, c := range coverages {
		c.Name = strings.Join(strings.Fields(c.Name), " ")
		if c.Name == "" {
			continue
		}
		c.Category = CanonicalCoverage(c.Name)

		if c.MonthlyPremium == 0 && c.Volume > 0 && c.Rate > 0 {
			basis := c.RateBasis
			if basis <= 0 {
				basis = 1
			}
			c.MonthlyPremium = c.Volume * c.Rate / basis
		}
		c.MonthlyPremium = roundCents(c.MonthlyPremium)

		key := c.Category
		if key == OtherCoverage {
			key = "other:" + strings.ToLower(c.Name)
		}
		if i, ok := index[key]; ok {
			merged := &out[i]
			merged.MonthlyPremium = roundCents(merged.MonthlyPremium + c.MonthlyPremium)
			merged.Volume += c.Volume
			if c.Details != "" {
				if merged.Details != "" {
					merged.Details += "; "
				}
				merged.Details += c.Details
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}

	return out
}
