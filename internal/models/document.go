package models

import (
	"fmt"
	"time"
)

// Category tells which side of the comparison a quote document belongs to.
type Category string

const (
	CategoryCurrent      Category = "current"
	CategoryRenegotiated Category = "renegotiated"
	CategoryAlternative  Category = "alternative"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryCurrent, CategoryRenegotiated, CategoryAlternative:
		return c, nil
	case "":
		return CategoryAlternative, nil
	}
	return "", fmt.Errorf("unknown document category %q", s)
}

// Coverage is a single benefit line item of a plan option.
type Coverage struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Volume         float64 `json:"volume,omitempty"`
	Rate           float64 `json:"rate,omitempty"`
	RateBasis      float64 `json:"rate_basis,omitempty"`
	MonthlyPremium float64 `json:"monthly_premium"`
	Details        string  `json:"details,omitempty"`
}

type PlanOption struct {
	Name         string     `json:"name"`
	Coverages    []Coverage `json:"coverages"`
	MonthlyTotal float64    `json:"monthly_total"`
}

// ParsedBenefitsDocument is the normalized result of processing one carrier quote.
type ParsedBenefitsDocument struct {
	ID                  string       `json:"id"`
	FileName            string       `json:"file_name"`
	Carrier             string       `json:"carrier"`
	Category            Category     `json:"category"`
	EffectiveDate       string       `json:"effective_date,omitempty"`
	PlanOptions         []PlanOption `json:"plan_options"`
	TotalMonthlyPremium float64      `json:"total_monthly_premium"`
	RawText             string       `json:"raw_text,omitempty"`
	ProcessedAt         time.Time    `json:"processed_at"`
}

// ProcessResult is the response body of the process-document endpoint.
type ProcessResult struct {
	Success    bool                    `json:"success"`
	Document   *ParsedBenefitsDocument `json:"document,omitempty"`
	Error      string                  `json:"error,omitempty"`
	DurationMS int64                   `json:"duration_ms"`
}

// DocumentChunk is a piece of extracted quote text indexed for search.
type DocumentChunk struct {
	DocumentID string
	FileName   string
	Carrier    string
	Index      int
	Content    string
	Embedding  []float32
}
