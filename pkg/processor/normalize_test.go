package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/processor"
)

func TestCanonicalCoverage(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Basic Life Insurance", "Life"},
		{"Dependent Life", "Dependent Life"},
		{"Employee AD&D", "AD&D"},
		{"Accidental Death & Dismemberment", "AD&D"},
		{"Short-Term Disability", "STD"},
		{"LTD (Non-Taxable)", "LTD"},
		{"Extended Health Care - Single", "Extended Health"},
		{"Health Care Spending Account", "HSA"},
		{"DENTAL", "Dental"},
		{"Vision Care", "Vision"},
		{"Employee & Family Assistance Program (EFAP)", "EAP"},
		{"Critical Illness", "Critical Illness"},
		{"Pet insurance", processor.OtherCoverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, processor.CanonicalCoverage(tt.name))
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
		wantErr  bool
	}{
		{"$1,234.56", 1234.56, false},
		{"1 234.56 CAD", 1234.56, false},
		{"(12.00)", -12, false},
		{"-3.5", -3.5, false},
		{"$85/month", 85, false},
		{"", 0, false},
		{"n/a", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := processor.ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 0.0001)
		})
	}
}

func TestNormalize(t *testing.T) {
	doc := &models.ParsedBenefitsDocument{
		Carrier: "  Canada   Life ",
		PlanOptions: []models.PlanOption{
			{
				Name: "",
				Coverages: []models.Coverage{
					{Name: "Basic Life", Volume: 500000, Rate: 0.25, RateBasis: 1000},
					{Name: "Dental - Single", MonthlyPremium: 300.004},
					{Name: "Dental - Family", MonthlyPremium: 700},
					{Name: "  "},
					{Name: "Pet insurance", MonthlyPremium: 10, Details: "optional"},
				},
			},
			{
				Name:      "Empty",
				Coverages: []models.Coverage{{Name: ""}},
			},
			{
				Name:      "Enhanced",
				Coverages: []models.Coverage{{Name: "LTD", MonthlyPremium: 900}},
			},
		},
	}

	require.NoError(t, processor.Normalize(doc))

	assert.Equal(t, "Canada Life", doc.Carrier)
	require.Len(t, doc.PlanOptions, 2)

	base := doc.PlanOptions[0]
	assert.Equal(t, "Option 1", base.Name)
	require.Len(t, base.Coverages, 3)
	assert.Equal(t, "Life", base.Coverages[0].Category)
	assert.Equal(t, 125.0, base.Coverages[0].MonthlyPremium)
	assert.Equal(t, "Dental", base.Coverages[1].Category)
	assert.Equal(t, 1000.0, base.Coverages[1].MonthlyPremium)
	assert.Equal(t, processor.OtherCoverage, base.Coverages[2].Category)
	assert.Equal(t, 1135.0, base.MonthlyTotal)

	assert.Equal(t, "Enhanced", doc.PlanOptions[1].Name)
	assert.Equal(t, 1135.0, doc.TotalMonthlyPremium)
}

func TestNormalizeEmptyDocument(t *testing.T) {
	doc := &models.ParsedBenefitsDocument{}
	err := processor.Normalize(doc)
	assert.ErrorIs(t, err, processor.ErrEmptyDocument)
	assert.Equal(t, "Unknown carrier", doc.Carrier)
}

func TestNormalizeKeepsStatedTotalWithoutPlans(t *testing.T) {
	doc := &models.ParsedBenefitsDocument{Carrier: "Manulife", TotalMonthlyPremium: 4200.456}
	require.NoError(t, processor.Normalize(doc))
	assert.Equal(t, 4200.46, doc.TotalMonthlyPremium)
}
