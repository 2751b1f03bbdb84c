package models

import "time"

// QuestionnaireData holds the answers entered so far, step by step.
type QuestionnaireData struct {
	CompanyName         string   `json:"company_name"`
	EmployeeCount       int      `json:"employee_count"`
	Region              string   `json:"region"`
	Industry            string   `json:"industry,omitempty"`
	CurrentCarrier      string   `json:"current_carrier,omitempty"`
	RenewalDate         string   `json:"renewal_date,omitempty"`
	Priorities          []string `json:"priorities"`
	BudgetChangePercent float64  `json:"budget_change_percent"`
	CurrentStep         string   `json:"current_step"`
}

// QuestionnaireResults is produced once answers are complete and processing finished.
type QuestionnaireResults struct {
	Data             QuestionnaireData `json:"data"`
	DocumentIDs      []string          `json:"document_ids"`
	ProcessingStatus string            `json:"processing_status"`
	FailedFiles      []string          `json:"failed_files,omitempty"`
	Recommendation   string            `json:"recommendation"`
	CompletedAt      time.Time         `json:"completed_at"`
}
