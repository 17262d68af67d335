package statement

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/store"
)

func amt(v float64) *float64 {
	return &v
}

func TestNormalizeTransactions(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	t.Run("maps sign to direction", func(t *testing.T) {
		raw := []extraction.RawTransaction{
			{Date: "2026-07-01", Description: "COFFEE SHOP", Amount: amt(-4.50)},
			{Date: "2026-07-02", Description: "SALARY", Amount: amt(2500)},
			{Date: "2026-07-03", Description: "ZERO ADJUSTMENT", Amount: amt(0)},
		}

		rows, err := normalizeTransactions(raw, "st-1", "user-1", "GBP", now)
		if err != nil {
			t.Fatalf("normalizeTransactions failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}

		if rows[0].Type != store.TypeDebit {
			t.Errorf("negative amount should be debit, got %q", rows[0].Type)
		}
		if rows[1].Type != store.TypeCredit {
			t.Errorf("positive amount should be credit, got %q", rows[1].Type)
		}
		if rows[2].Type != store.TypeCredit {
			t.Errorf("zero amount should be credit, got %q", rows[2].Type)
		}
	})

	t.Run("stamps identity and currency on every row", func(t *testing.T) {
		raw := []extraction.RawTransaction{
			{Date: "2026-07-01", Description: "A", Amount: amt(-1)},
			{Date: "2026-07-02", Description: "B", Amount: amt(2)},
		}

		rows, err := normalizeTransactions(raw, "st-1", "user-1", "JPY", now)
		if err != nil {
			t.Fatalf("normalizeTransactions failed: %v", err)
		}

		for i, row := range rows {
			if row.StatementID != "st-1" || row.UserID != "user-1" {
				t.Errorf("row %d missing identity: %+v", i, row)
			}
			if !row.Currency.Valid || row.Currency.StringVal != "JPY" {
				t.Errorf("row %d expected currency JPY, got %+v", i, row.Currency)
			}
			if row.TransactionID == "" {
				t.Errorf("row %d missing transaction ID", i)
			}
			if !row.CreatedTS.Equal(now) {
				t.Errorf("row %d expected created_ts %v, got %v", i, now, row.CreatedTS)
			}
		}

		if rows[0].TransactionID == rows[1].TransactionID {
			t.Error("transaction IDs must be unique")
		}
	})

	t.Run("optional fields pass through", func(t *testing.T) {
		rawPayload := json.RawMessage(`{"date":"2026-07-01","description":"SHOP","amount":-10,"category":"Groceries","balance":990.5}`)
		raw := []extraction.RawTransaction{
			{
				Date:        "2026-07-01",
				Description: "SHOP",
				Amount:      amt(-10),
				Category:    "Groceries",
				Balance:     amt(990.5),
				Raw:         rawPayload,
			},
			{Date: "2026-07-02", Description: "PLAIN", Amount: amt(-5)},
		}

		rows, err := normalizeTransactions(raw, "st-1", "user-1", "USD", now)
		if err != nil {
			t.Fatalf("normalizeTransactions failed: %v", err)
		}

		if !rows[0].Category.Valid || rows[0].Category.StringVal != "Groceries" {
			t.Errorf("expected category Groceries, got %+v", rows[0].Category)
		}
		if !rows[0].Balance.Valid || rows[0].Balance.Float64 != 990.5 {
			t.Errorf("expected balance 990.5, got %+v", rows[0].Balance)
		}
		if !rows[0].RawData.Valid {
			t.Error("expected raw payload to be stored")
		}

		if rows[1].Category.Valid || rows[1].Balance.Valid || rows[1].RawData.Valid {
			t.Errorf("expected absent optional fields to stay null: %+v", rows[1])
		}
	})

	t.Run("malformed entries fail the whole batch", func(t *testing.T) {
		tests := []struct {
			name      string
			raw       []extraction.RawTransaction
			wantIndex int
			wantField string
		}{
			{
				name: "bad date",
				raw: []extraction.RawTransaction{
					{Date: "2026-07-01", Description: "OK", Amount: amt(1)},
					{Date: "07/02/2026", Description: "BAD DATE", Amount: amt(1)},
				},
				wantIndex: 1,
				wantField: "date",
			},
			{
				name: "empty description",
				raw: []extraction.RawTransaction{
					{Date: "2026-07-01", Description: "   ", Amount: amt(1)},
				},
				wantIndex: 0,
				wantField: "description",
			},
			{
				name: "missing amount",
				raw: []extraction.RawTransaction{
					{Date: "2026-07-01", Description: "OK", Amount: amt(1)},
					{Date: "2026-07-02", Description: "OK", Amount: amt(1)},
					{Date: "2026-07-03", Description: "NO AMOUNT"},
				},
				wantIndex: 2,
				wantField: "amount",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := normalizeTransactions(tt.raw, "st-1", "user-1", "USD", now)
				if rows != nil {
					t.Error("expected no rows on validation failure")
				}

				var malformed *MalformedTransactionError
				if !errors.As(err, &malformed) {
					t.Fatalf("expected MalformedTransactionError, got %v", err)
				}
				if malformed.Index != tt.wantIndex || malformed.Field != tt.wantField {
					t.Errorf("got index=%d field=%q, want index=%d field=%q",
						malformed.Index, malformed.Field, tt.wantIndex, tt.wantField)
				}
			})
		}
	})

	t.Run("empty batch is valid", func(t *testing.T) {
		rows, err := normalizeTransactions(nil, "st-1", "user-1", "USD", now)
		if err != nil {
			t.Fatalf("normalizeTransactions failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected 0 rows, got %d", len(rows))
		}
	})
}

func TestExtractionMetadata(t *testing.T) {
	t.Run("credit card keeps bill amount", func(t *testing.T) {
		meta := extractionMetadata(extraction.StatementSummary{
			AccountName:     "Visa Gold",
			TotalBillAmount: amt(1234.56),
		}, store.StatementTypeCreditCard)

		if meta["account_name"] != "Visa Gold" {
			t.Errorf("expected account name, got %v", meta["account_name"])
		}
		if meta["total_bill_amount"] != 1234.56 {
			t.Errorf("expected bill amount, got %v", meta["total_bill_amount"])
		}
	})

	t.Run("canonical type governs, not the raw summary value", func(t *testing.T) {
		meta := extractionMetadata(extraction.StatementSummary{
			StatementType:   "Credit_Card",
			TotalBillAmount: amt(99),
		}, store.StatementTypeCreditCard)

		if meta["total_bill_amount"] != 99.0 {
			t.Errorf("expected bill amount despite raw casing, got %v", meta)
		}
	})

	t.Run("bank statement drops bill amount", func(t *testing.T) {
		meta := extractionMetadata(extraction.StatementSummary{
			AccountName:     "Checking",
			TotalBillAmount: amt(99),
		}, store.StatementTypeBank)

		if _, ok := meta["total_bill_amount"]; ok {
			t.Error("bank statements must not carry total_bill_amount")
		}
	})

	t.Run("empty summary yields nil", func(t *testing.T) {
		if meta := extractionMetadata(extraction.StatementSummary{}, ""); meta != nil {
			t.Errorf("expected nil metadata, got %v", meta)
		}
	})
}
