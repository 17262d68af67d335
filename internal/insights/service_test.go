package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/store"
)

// mockTransactionRepo is a configurable TransactionRepository for testing.
type mockTransactionRepo struct {
	listFunc func(ctx context.Context, userID string) ([]*store.TransactionRow, error)
}

func (m *mockTransactionRepo) InsertTransactions(ctx context.Context, rows []*store.TransactionRow) error {
	return nil
}

func (m *mockTransactionRepo) ListTransactionsByUser(ctx context.Context, userID string) ([]*store.TransactionRow, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockTransactionRepo) ListTransactionsByDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*store.TransactionRow, error) {
	return nil, nil
}

func (m *mockTransactionRepo) DeleteTransactionsByStatement(ctx context.Context, userID, statementID string) error {
	return nil
}

// mockInsightsRepo is a configurable InsightsRepository for testing.
type mockInsightsRepo struct {
	getFunc    func(ctx context.Context, userID string, now time.Time) (*store.InsightsCacheRow, error)
	deleteFunc func(ctx context.Context, userID string) error
	insertFunc func(ctx context.Context, row *store.InsightsCacheRow) error

	deletes int
	inserts []*store.InsightsCacheRow
}

func (m *mockInsightsRepo) GetLatestCache(ctx context.Context, userID string, now time.Time) (*store.InsightsCacheRow, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, now)
	}
	return nil, nil
}

func (m *mockInsightsRepo) DeleteCache(ctx context.Context, userID string) error {
	m.deletes++
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID)
	}
	return nil
}

func (m *mockInsightsRepo) InsertCache(ctx context.Context, row *store.InsightsCacheRow) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, row)
	}
	m.inserts = append(m.inserts, row)
	return nil
}

// mockGenerator is a configurable Generator for testing.
type mockGenerator struct {
	generateFunc func(ctx context.Context, txs []extraction.TransactionView) (*store.InsightsData, error)
	calls        int
}

func (m *mockGenerator) GenerateInsights(ctx context.Context, txs []extraction.TransactionView) (*store.InsightsData, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, txs)
	}
	return &store.InsightsData{SpendingTrends: "stable"}, nil
}

func tx(date string, amount float64, currency string) *store.TransactionRow {
	d, _ := time.Parse("2006-01-02", date)
	row := &store.TransactionRow{
		TransactionID:   "tx-" + date,
		StatementID:     "st-1",
		UserID:          "user-1",
		TransactionDate: civil.DateOf(d),
		Description:     "entry",
		Amount:          amount,
	}
	if currency != "" {
		row.Currency = bigquery.NullString{StringVal: currency, Valid: true}
	}
	return row
}

func fixedNow() time.Time {
	return time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(transactions *mockTransactionRepo, cache *mockInsightsRepo, gen *mockGenerator) *Service {
	svc := NewService(transactions, cache, gen, 24*time.Hour)
	svc.now = fixedNow
	return svc
}

func TestService_GetValid(t *testing.T) {
	t.Run("absent cache is nil, not an error", func(t *testing.T) {
		svc := newTestService(&mockTransactionRepo{}, &mockInsightsRepo{}, &mockGenerator{})

		row, err := svc.GetValid(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("GetValid failed: %v", err)
		}
		if row != nil {
			t.Errorf("expected nil row, got %+v", row)
		}
	})

	t.Run("passes current time to the repository", func(t *testing.T) {
		var gotNow time.Time
		cache := &mockInsightsRepo{
			getFunc: func(ctx context.Context, userID string, now time.Time) (*store.InsightsCacheRow, error) {
				gotNow = now
				return &store.InsightsCacheRow{CacheID: "c-1", UserID: userID}, nil
			},
		}
		svc := newTestService(&mockTransactionRepo{}, cache, &mockGenerator{})

		row, err := svc.GetValid(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("GetValid failed: %v", err)
		}
		if row == nil || row.CacheID != "c-1" {
			t.Errorf("expected cache row c-1, got %+v", row)
		}
		if !gotNow.Equal(fixedNow()) {
			t.Errorf("expected now %v, got %v", fixedNow(), gotNow)
		}
	})
}

func TestService_Regenerate(t *testing.T) {
	t.Run("no transactions", func(t *testing.T) {
		gen := &mockGenerator{}
		svc := newTestService(&mockTransactionRepo{}, &mockInsightsRepo{}, gen)

		_, err := svc.Regenerate(context.Background(), "user-1")
		if !errors.Is(err, extraction.ErrNoTransactionData) {
			t.Fatalf("expected ErrNoTransactionData, got %v", err)
		}
		if gen.calls != 0 {
			t.Error("no external call may be made for an empty transaction set")
		}
	})

	t.Run("success replaces cache", func(t *testing.T) {
		transactions := &mockTransactionRepo{
			listFunc: func(ctx context.Context, userID string) ([]*store.TransactionRow, error) {
				return []*store.TransactionRow{
					tx("2026-07-01", -10, "JPY"),
					tx("2026-07-02", -20, "JPY"),
					tx("2026-07-03", 500, "USD"),
				}, nil
			},
		}
		cache := &mockInsightsRepo{}
		svc := newTestService(transactions, cache, &mockGenerator{})

		row, err := svc.Regenerate(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Regenerate failed: %v", err)
		}

		if cache.deletes != 1 || len(cache.inserts) != 1 {
			t.Fatalf("expected delete-then-insert, got deletes=%d inserts=%d", cache.deletes, len(cache.inserts))
		}
		if !row.GeneratedAt.Equal(fixedNow()) {
			t.Errorf("expected generated_at %v, got %v", fixedNow(), row.GeneratedAt)
		}
		if !row.ExpiresAt.Equal(fixedNow().Add(24 * time.Hour)) {
			t.Errorf("expected expires_at 24h later, got %v", row.ExpiresAt)
		}

		data, err := row.Data()
		if err != nil {
			t.Fatalf("stored payload is not valid JSON: %v", err)
		}
		if data.Currency != "JPY" {
			t.Errorf("expected primary currency JPY (mode), got %q", data.Currency)
		}
	})

	t.Run("generator failure keeps cache untouched", func(t *testing.T) {
		transactions := &mockTransactionRepo{
			listFunc: func(ctx context.Context, userID string) ([]*store.TransactionRow, error) {
				return []*store.TransactionRow{tx("2026-07-01", -10, "USD")}, nil
			},
		}
		cache := &mockInsightsRepo{}
		gen := &mockGenerator{
			generateFunc: func(ctx context.Context, txs []extraction.TransactionView) (*store.InsightsData, error) {
				return nil, &extraction.ServiceError{Status: "UNAVAILABLE", Err: errors.New("overloaded")}
			},
		}
		svc := newTestService(transactions, cache, gen)

		_, err := svc.Regenerate(context.Background(), "user-1")
		if err == nil {
			t.Fatal("expected error from failed generation")
		}
		if cache.deletes != 0 || len(cache.inserts) != 0 {
			t.Error("cache must not be mutated when generation fails")
		}
	})

	t.Run("in-flight guard", func(t *testing.T) {
		svc := newTestService(&mockTransactionRepo{}, &mockInsightsRepo{}, &mockGenerator{})

		if !svc.begin("user-1") {
			t.Fatal("first begin must succeed")
		}

		_, err := svc.Regenerate(context.Background(), "user-1")
		if !errors.Is(err, ErrRegenerationInFlight) {
			t.Fatalf("expected ErrRegenerationInFlight, got %v", err)
		}

		// Other users are unaffected.
		_, err = svc.Regenerate(context.Background(), "user-2")
		if errors.Is(err, ErrRegenerationInFlight) {
			t.Error("guard must be per-user")
		}

		svc.end("user-1")

		// After the first run ends, the user can regenerate again.
		_, err = svc.Regenerate(context.Background(), "user-1")
		if errors.Is(err, ErrRegenerationInFlight) {
			t.Error("guard must clear after the run ends")
		}
	})

	t.Run("transaction views drop storage details", func(t *testing.T) {
		transactions := &mockTransactionRepo{
			listFunc: func(ctx context.Context, userID string) ([]*store.TransactionRow, error) {
				row := tx("2026-07-01", -10, "USD")
				row.Category = bigquery.NullString{StringVal: "Dining", Valid: true}
				return []*store.TransactionRow{row}, nil
			},
		}
		var gotViews []extraction.TransactionView
		gen := &mockGenerator{
			generateFunc: func(ctx context.Context, txs []extraction.TransactionView) (*store.InsightsData, error) {
				gotViews = txs
				return &store.InsightsData{}, nil
			},
		}
		svc := newTestService(transactions, &mockInsightsRepo{}, gen)

		if _, err := svc.Regenerate(context.Background(), "user-1"); err != nil {
			t.Fatalf("Regenerate failed: %v", err)
		}

		if len(gotViews) != 1 {
			t.Fatalf("expected 1 view, got %d", len(gotViews))
		}
		view := gotViews[0]
		if view.Date != "2026-07-01" || view.Amount != -10 || view.Category != "Dining" {
			t.Errorf("unexpected view: %+v", view)
		}
	})
}

func TestPrimaryCurrency(t *testing.T) {
	tests := []struct {
		name string
		txs  []*store.TransactionRow
		want string
	}{
		{
			name: "mode wins",
			txs: []*store.TransactionRow{
				tx("2026-07-01", -1, "JPY"),
				tx("2026-07-02", -1, "JPY"),
				tx("2026-07-03", -1, "USD"),
			},
			want: "JPY",
		},
		{
			name: "absent tags count as default",
			txs: []*store.TransactionRow{
				tx("2026-07-01", -1, ""),
				tx("2026-07-02", -1, ""),
				tx("2026-07-03", -1, "EUR"),
			},
			want: "USD",
		},
		{
			name: "tie goes to first to reach the count",
			txs: []*store.TransactionRow{
				tx("2026-07-01", -1, "GBP"),
				tx("2026-07-02", -1, "EUR"),
			},
			want: "GBP",
		},
		{
			name: "empty set falls back to default",
			txs:  nil,
			want: "USD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := primaryCurrency(tt.txs); got != tt.want {
				t.Errorf("primaryCurrency() = %q, want %q", got, tt.want)
			}
		})
	}
}
