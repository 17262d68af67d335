// Package insights decides whether cached spending insights are still
// valid, regenerates them through the inference service when stale or
// absent, and enforces a single live cache row per user.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-insights/internal/currency"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

// ErrRegenerationInFlight indicates a regeneration for the user is already
// running. The guard avoids duplicate external calls and the race where an
// older response overwrites a newer cache row.
var ErrRegenerationInFlight = errors.New("insights regeneration already in flight")

// Generator produces an insights payload from a simplified transaction view.
// This interface enables mocking the external model in tests.
type Generator interface {
	GenerateInsights(ctx context.Context, txs []extraction.TransactionView) (*store.InsightsData, error)
}

// Service is the insights cache manager.
type Service struct {
	transactions store.TransactionRepository
	cache        store.InsightsRepository
	generator    Generator
	ttl          time.Duration

	mu       sync.Mutex
	inFlight map[string]bool

	now func() time.Time
}

// NewService creates an insights Service with the given cache validity
// window.
func NewService(transactions store.TransactionRepository, cache store.InsightsRepository, generator Generator, ttl time.Duration) *Service {
	return &Service{
		transactions: transactions,
		cache:        cache,
		generator:    generator,
		ttl:          ttl,
		inFlight:     make(map[string]bool),
		now:          time.Now,
	}
}

// GetValid returns the user's most recently generated cache row that has not
// expired, or nil. Absence (no row, or only expired rows) is a valid "no
// cache" result, not an error.
func (s *Service) GetValid(ctx context.Context, userID string) (*store.InsightsCacheRow, error) {
	row, err := s.cache.GetLatestCache(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("GetValid: %w", err)
	}
	return row, nil
}

// Regenerate builds fresh insights from the user's full transaction history
// and replaces the cache row. On generator failure no cache mutation occurs;
// the prior cache, if any, stays authoritative until it expires.
func (s *Service) Regenerate(ctx context.Context, userID string) (*store.InsightsCacheRow, error) {
	if !s.begin(userID) {
		return nil, ErrRegenerationInFlight
	}
	defer s.end(userID)

	txs, err := s.transactions.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Regenerate: loading transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, extraction.ErrNoTransactionData
	}

	primary := primaryCurrency(txs)

	views := make([]extraction.TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := extraction.TransactionView{
			Date:        tx.TransactionDate.String(),
			Description: tx.Description,
			Amount:      tx.Amount,
		}
		if tx.Category.Valid {
			view.Category = tx.Category.StringVal
		}
		views = append(views, view)
	}

	data, err := s.generator.GenerateInsights(ctx, views)
	if err != nil {
		return nil, fmt.Errorf("Regenerate: %w", err)
	}
	data.Currency = primary

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("Regenerate: marshal payload: %w", err)
	}

	now := s.now()
	row := &store.InsightsCacheRow{
		CacheID:      uuid.NewString(),
		UserID:       userID,
		InsightsJSON: string(payload),
		GeneratedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
	}

	// Delete-then-insert is not atomic. A failure in between leaves the
	// user with no cache row, which is a valid, self-healing state: the
	// next read sees "absent" and triggers regeneration.
	if err := s.cache.DeleteCache(ctx, userID); err != nil {
		return nil, fmt.Errorf("Regenerate: evicting cache: %w", err)
	}
	if err := s.cache.InsertCache(ctx, row); err != nil {
		return nil, fmt.Errorf("Regenerate: inserting cache: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Int("transaction_count", len(txs)).
		Str("currency", primary).
		Time("expires_at", row.ExpiresAt).
		Msg("Insights regenerated")

	return row, nil
}

func (s *Service) begin(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *Service) end(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

// primaryCurrency picks the most frequent currency tag among the
// transactions, defaulting absent tags to the baseline code. Ties go to the
// first currency to reach the maximum count in iteration order, which is
// deterministic because transactions arrive date-ordered from the store.
func primaryCurrency(txs []*store.TransactionRow) string {
	counts := make(map[string]int)
	best := currency.DefaultCurrency
	bestCount := 0

	for _, tx := range txs {
		code := currency.DefaultCurrency
		if tx.Currency.Valid && tx.Currency.StringVal != "" {
			code = tx.Currency.StringVal
		}
		counts[code]++
		if counts[code] > bestCount {
			best = code
			bestCount = counts[code]
		}
	}

	return best
}
