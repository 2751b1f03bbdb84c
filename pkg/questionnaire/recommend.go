package questionnaire

import (
	"fmt"
	"math"
	"strings"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/comparison"
)

// Recommend summarizes a comparison for the broker, taking the client's budget target into account.
func Recommend(cmp *models.Comparison, data *models.QuestionnaireData) string {
	if len(cmp.Columns) == 0 {
		return "No quotes were available to compare."
	}

	current, hasCurrent := comparison.Current(cmp)
	best, hasBest := comparison.Cheapest(cmp)

	var b strings.Builder
	switch {
	case hasCurrent && hasBest && best.MonthlyTotal < current.MonthlyTotal:
		saving := current.MonthlyTotal - best.MonthlyTotal
		fmt.Fprintf(&b, "%s (%s) is the lowest priced option at $%.2f/month, saving $%.2f/month (%.1f%%) against %s.",
			best.Carrier, best.Category, best.MonthlyTotal, saving, saving/current.MonthlyTotal*100, current.Carrier)
	case hasCurrent:
		fmt.Fprintf(&b, "The current plan with %s remains the lowest priced option at $%.2f/month.", current.Carrier, current.MonthlyTotal)
	case hasBest:
		fmt.Fprintf(&b, "%s is the lowest priced option at $%.2f/month.", best.Carrier, best.MonthlyTotal)
		if data.CurrentCarrier != "" {
			fmt.Fprintf(&b, " No current quote from %s was uploaded to compare against.", data.CurrentCarrier)
		}
	default:
		return "No priced quotes were available to compare."
	}

	if hasCurrent && data.BudgetChangePercent != 0 {
		target := math.Round(current.MonthlyTotal*(1+data.BudgetChangePercent/100)*100) / 100
		lowest := current.MonthlyTotal
		if hasBest && best.MonthlyTotal < lowest {
			lowest = best.MonthlyTotal
		}
		if lowest <= target {
			fmt.Fprintf(&b, " The budget target of $%.2f/month is met.", target)
		} else {
			fmt.Fprintf(&b, " No option meets the budget target of $%.2f/month.", target)
		}
	}
	return b.String()
}
