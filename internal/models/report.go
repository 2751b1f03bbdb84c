package models

import "time"

type Report struct {
	ID          string                   `json:"id"`
	OwnerID     string                   `json:"owner_id"`
	Title       string                   `json:"title"`
	ClientName  string                   `json:"client_name,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	Documents   []ParsedBenefitsDocument `json:"documents"`
	Comparison  *Comparison              `json:"comparison,omitempty"`
	ShareToken  string                   `json:"-"`
	SharedUntil *time.Time               `json:"shared_until,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

type ShareLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Comparison is the side-by-side view of several quote documents.
type Comparison struct {
	Columns []ComparisonColumn `json:"columns"`
	Rows    []ComparisonRow    `json:"rows"`
}

type ComparisonColumn struct {
	DocumentID   string   `json:"document_id"`
	Carrier      string   `json:"carrier"`
	Category     Category `json:"category"`
	MonthlyTotal float64  `json:"monthly_total"`
	AnnualTotal  float64  `json:"annual_total"`
	DiffAmount   *float64 `json:"diff_amount,omitempty"`
	DiffPercent  *float64 `json:"diff_percent,omitempty"`
}

type ComparisonRow struct {
	Coverage string     `json:"coverage"`
	Premiums []*float64 `json:"premiums"`
}
