package statement

import (
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

// normalizeTransactions maps raw extracted transactions into canonical
// stored rows. Validation is eager: a malformed entry fails the whole batch
// before anything is inserted, so "no transactions" stays a valid state for
// an errored statement.
func normalizeTransactions(raw []extraction.RawTransaction, statementID, userID, currencyCode string, now time.Time) ([]*store.TransactionRow, error) {
	rows := make([]*store.TransactionRow, 0, len(raw))

	for i, tx := range raw {
		date, err := time.Parse("2006-01-02", tx.Date)
		if err != nil {
			return nil, &MalformedTransactionError{Index: i, Field: "date"}
		}

		desc := strings.TrimSpace(tx.Description)
		if desc == "" {
			return nil, &MalformedTransactionError{Index: i, Field: "description"}
		}

		if tx.Amount == nil {
			return nil, &MalformedTransactionError{Index: i, Field: "amount"}
		}
		amount := *tx.Amount

		// The extraction instruction already normalized source-specific
		// sign conventions: negative means money out, uniformly.
		direction := store.TypeCredit
		if amount < 0 {
			direction = store.TypeDebit
		}

		row := &store.TransactionRow{
			TransactionID:   uuid.NewString(),
			StatementID:     statementID,
			UserID:          userID,
			TransactionDate: civil.DateOf(date),
			Description:     desc,
			Amount:          amount,
			Type:            direction,
			Currency:        bigquery.NullString{StringVal: currencyCode, Valid: currencyCode != ""},
			CreatedTS:       now,
		}

		if category := strings.TrimSpace(tx.Category); category != "" {
			row.Category = bigquery.NullString{StringVal: category, Valid: true}
		}
		if tx.Balance != nil {
			row.Balance = bigquery.NullFloat64{Float64: *tx.Balance, Valid: true}
		}
		if len(tx.Raw) > 0 {
			row.RawData = bigquery.NullJSON{JSONVal: string(tx.Raw), Valid: true}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// extractionMetadata builds the statement metadata map from the extraction
// summary. statementType is the canonical lowercased kind, normalized once by
// the caller so the persisted value and this check cannot disagree. For card
// statements the reported total bill amount is kept for later reconciliation
// display; it is informational only and never checked against the
// transaction sum.
func extractionMetadata(summary extraction.StatementSummary, statementType string) map[string]interface{} {
	metadata := make(map[string]interface{})

	if summary.AccountName != "" {
		metadata["account_name"] = summary.AccountName
	}
	if statementType == store.StatementTypeCreditCard && summary.TotalBillAmount != nil {
		metadata["total_bill_amount"] = *summary.TotalBillAmount
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
