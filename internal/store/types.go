package store

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Processing status values for a statement. Transitions are monotonic
// forward; "error" is terminal for a run but retryable by re-running the
// pipeline.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusError      = "error"
)

// Transaction direction tags. Derived from the sign of the amount:
// negative means money left the account.
const (
	TypeDebit  = "debit"
	TypeCredit = "credit"
)

// Statement kind tags reported by the extraction summary.
const (
	StatementTypeBank       = "bank"
	StatementTypeCreditCard = "credit_card"
)

// StatementRow represents a statement record in BigQuery.
type StatementRow struct {
	StatementID string `bigquery:"statement_id"`
	UserID      string `bigquery:"user_id"`

	FileName    string `bigquery:"file_name"`
	StoragePath string `bigquery:"storage_path"`

	UploadedAt time.Time `bigquery:"uploaded_at"`

	ProcessingStatus string `bigquery:"processing_status"`

	StatementType bigquery.NullString `bigquery:"statement_type"`
	Currency      bigquery.NullString `bigquery:"currency"`

	Metadata bigquery.NullJSON `bigquery:"metadata"`
}

// TransactionRow represents a transaction record in BigQuery.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	StatementID   string `bigquery:"statement_id"`
	UserID        string `bigquery:"user_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`
	Description     string     `bigquery:"description"`

	// Amount is signed: negative for money out, positive for money in.
	Amount float64 `bigquery:"amount"`
	Type   string  `bigquery:"type"`

	Category bigquery.NullString  `bigquery:"category"`
	Balance  bigquery.NullFloat64 `bigquery:"balance"`
	Currency bigquery.NullString  `bigquery:"currency"`

	RawData bigquery.NullJSON `bigquery:"raw_data"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// InsightsCacheRow represents the single live insights cache entry of a user.
// ExpiresAt is always GeneratedAt plus the configured validity window; rows
// past ExpiresAt are treated as absent by readers.
type InsightsCacheRow struct {
	CacheID string `bigquery:"cache_id"`
	UserID  string `bigquery:"user_id"`

	// InsightsJSON is the serialized InsightsData payload.
	InsightsJSON string `bigquery:"insights_data"`

	GeneratedAt time.Time `bigquery:"generated_at"`
	ExpiresAt   time.Time `bigquery:"expires_at"`
}

// Data deserializes the insights payload of the cache row.
func (r *InsightsCacheRow) Data() (*InsightsData, error) {
	var data InsightsData
	if err := json.Unmarshal([]byte(r.InsightsJSON), &data); err != nil {
		return nil, fmt.Errorf("InsightsCacheRow.Data: unmarshal payload: %w", err)
	}
	return &data, nil
}

// TopCategory is one entry of the top-spending-categories list.
type TopCategory struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// MonthlySummary aggregates cash flow for the analyzed period.
type MonthlySummary struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetCashFlow   float64 `json:"netCashFlow"`
}

// InsightsData is the structured insights payload produced by the model and
// stored in the cache row.
type InsightsData struct {
	TopCategories   []TopCategory  `json:"topCategories"`
	MonthlySummary  MonthlySummary `json:"monthlySummary"`
	UnusualActivity []string       `json:"unusualActivity"`
	SpendingTrends  string         `json:"spendingTrends"`
	Recommendations []string       `json:"recommendations"`
	Currency        string         `json:"currency,omitempty"`
}
