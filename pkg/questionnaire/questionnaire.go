package questionnaire

import (
	"strings"
	"time"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/validation"
)

type Step string

const (
	StepCompany    Step = "company"
	StepCoverage   Step = "coverage"
	StepPriorities Step = "priorities"
	StepReview     Step = "review"
)

var Steps = []Step{StepCompany, StepCoverage, StepPriorities, StepReview}

const (
	MaxEmployees      = 100000
	RenewalDateFormat = "2006-01-02"
)

// Priorities a broker can rank for the client.
var Priorities = []string{"cost", "coverage", "service", "stability", "flexibility", "wellness"}

func ParseStep(s string) (Step, bool) {
	for _, step := range Steps {
		if string(step) == s {
			return step, true
		}
	}
	return "", false
}

func stepIndex(step Step) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}
	return 0
}

// ValidateStep checks the answers a single step owns. The review step checks all of them.
// hasCurrentDocument tells whether a current quote was uploaded, in which case the
// current carrier is taken from it.
func ValidateStep(step Step, data *models.QuestionnaireData, hasCurrentDocument bool) validation.Errors {
	var errs validation.Errors

	switch step {
	case StepCompany:
		if strings.TrimSpace(data.CompanyName) == "" {
			errs.Add("company_name", "company name is required")
		}
		if data.EmployeeCount < 1 || data.EmployeeCount > MaxEmployees {
			errs.Add("employee_count", "employee count must be between 1 and %d", MaxEmployees)
		}
		if strings.TrimSpace(data.Region) == "" {
			errs.Add("region", "province or state is required")
		}
	case StepCoverage:
		if !hasCurrentDocument && strings.TrimSpace(data.CurrentCarrier) == "" {
			errs.Add("current_carrier", "current carrier is required when no current quote was uploaded")
		}
		if data.RenewalDate != "" {
			if _, err := time.Parse(RenewalDateFormat, data.RenewalDate); err != nil {
				errs.Add("renewal_date", "renewal date must be formatted as YYYY-MM-DD")
			}
		}
	case StepPriorities:
		if len(data.Priorities) == 0 {
			errs.Add("priorities", "select at least one priority")
		}
		for _, p := range data.Priorities {
			if !knownPriority(p) {
				errs.Add("priorities", "unknown priority %q", p)
			}
		}
		if data.BudgetChangePercent < -100 || data.BudgetChangePercent > 100 {
			errs.Add("budget_change_percent", "budget change must be between -100 and 100 percent")
		}
	case StepReview:
		for _, s := range Steps[:len(Steps)-1] {
			errs = append(errs, ValidateStep(s, data, hasCurrentDocument)...)
		}
	default:
		errs.Add("current_step", "unknown step %q", step)
	}

	return errs
}

// Validate checks every step.
func Validate(data *models.QuestionnaireData, hasCurrentDocument bool) validation.Errors {
	return ValidateStep(StepReview, data, hasCurrentDocument)
}

func knownPriority(p string) bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}
