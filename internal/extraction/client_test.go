package extraction

import (
	"context"
	"errors"
	"testing"
)

func TestParseStatementResponse(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := `{
			"summary": {"account_name": "Main Account", "statement_type": "bank", "currency": "GBP"},
			"transactions": [
				{"date": "2026-07-01", "description": "COFFEE SHOP", "amount": -4.50, "category": "Dining"},
				{"date": "2026-07-02", "description": "SALARY", "amount": 2500.00}
			]
		}`

		result, err := parseStatementResponse(raw)
		if err != nil {
			t.Fatalf("parseStatementResponse failed: %v", err)
		}

		if result.Summary.Currency != "GBP" {
			t.Errorf("expected currency GBP, got %q", result.Summary.Currency)
		}
		if result.Summary.StatementType != "bank" {
			t.Errorf("expected statement type bank, got %q", result.Summary.StatementType)
		}
		if len(result.Transactions) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(result.Transactions))
		}
		if result.Transactions[0].Amount == nil || *result.Transactions[0].Amount != -4.50 {
			t.Errorf("expected first amount -4.50, got %v", result.Transactions[0].Amount)
		}
		if len(result.Transactions[0].Raw) == 0 {
			t.Error("expected raw payload to be preserved")
		}
	})

	t.Run("prose-wrapped response", func(t *testing.T) {
		raw := `Here is the extracted data:
{"summary": {"currency": "USD"}, "transactions": []}
Let me know if you need anything else.`

		result, err := parseStatementResponse(raw)
		if err != nil {
			t.Fatalf("parseStatementResponse failed: %v", err)
		}
		if len(result.Transactions) != 0 {
			t.Errorf("expected 0 transactions, got %d", len(result.Transactions))
		}
	})

	t.Run("missing transactions key", func(t *testing.T) {
		_, err := parseStatementResponse(`{"summary": {"currency": "USD"}}`)

		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
	})

	t.Run("no JSON object", func(t *testing.T) {
		_, err := parseStatementResponse("sorry, the document is unreadable")

		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
	})

	t.Run("transaction is not an object", func(t *testing.T) {
		_, err := parseStatementResponse(`{"summary": {}, "transactions": ["not an object"]}`)

		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
	})
}

func TestParseInsightsResponse(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := "```json\n" + `{
			"topCategories": [{"category": "Dining", "amount": 120.5, "percentage": 40.0}],
			"monthlySummary": {"totalIncome": 2500, "totalExpenses": 300, "netCashFlow": 2200},
			"unusualActivity": ["Large transfer on 2026-07-15"],
			"spendingTrends": "Spending is stable month over month.",
			"recommendations": ["Reduce dining out"]
		}` + "\n```"

		data, err := parseInsightsResponse(raw)
		if err != nil {
			t.Fatalf("parseInsightsResponse failed: %v", err)
		}

		if len(data.TopCategories) != 1 || data.TopCategories[0].Category != "Dining" {
			t.Errorf("unexpected top categories: %+v", data.TopCategories)
		}
		if data.MonthlySummary.NetCashFlow != 2200 {
			t.Errorf("expected net cash flow 2200, got %v", data.MonthlySummary.NetCashFlow)
		}
		if len(data.Recommendations) != 1 {
			t.Errorf("expected 1 recommendation, got %d", len(data.Recommendations))
		}
	})

	t.Run("no JSON object", func(t *testing.T) {
		_, err := parseInsightsResponse("no insights available")

		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
	})
}

func TestGenerateInsights_EmptyInput(t *testing.T) {
	// The empty-input check happens before any external call, so a client
	// with no backing connection must still return the sentinel.
	c := &Client{}

	_, err := c.GenerateInsights(context.Background(), nil)
	if !errors.Is(err, ErrNoTransactionData) {
		t.Fatalf("expected ErrNoTransactionData, got %v", err)
	}

	_, err = c.GenerateInsights(context.Background(), []TransactionView{})
	if !errors.Is(err, ErrNoTransactionData) {
		t.Fatalf("expected ErrNoTransactionData, got %v", err)
	}
}

func TestServiceError(t *testing.T) {
	inner := errors.New("boom")
	err := &ServiceError{Status: "RESOURCE_EXHAUSTED", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected ServiceError to unwrap to inner error")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}
