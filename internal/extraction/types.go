package extraction

import (
	"encoding/json"
)

// StatementSummary is the account-level metadata the model extracts from a
// statement document.
type StatementSummary struct {
	AccountName   string `json:"account_name"`
	StatementType string `json:"statement_type"`
	Currency      string `json:"currency"`

	// TotalBillAmount is reported for credit-card statements only. It is
	// informational; it is never reconciled against the transaction sum.
	TotalBillAmount *float64 `json:"total_bill_amount"`
}

// RawTransaction is one transaction exactly as the model emitted it. Shape
// validation happens in the normalizer, not here.
type RawTransaction struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Balance     *float64 `json:"balance"`

	// Raw preserves the original model payload for the stored raw_data column.
	Raw json.RawMessage `json:"-"`
}

// StatementExtraction is the structured result of one extraction call.
type StatementExtraction struct {
	Summary      StatementSummary
	Transactions []RawTransaction
}

// TransactionView is the simplified transaction shape sent to the model for
// insights generation: no ids, no raw payload.
type TransactionView struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
}

// statementPayload is the boundary schema of the extraction response.
type statementPayload struct {
	Summary      StatementSummary  `json:"summary"`
	Transactions []json.RawMessage `json:"transactions"`
}
