package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Repository is the BigQuery-backed implementation of the statement,
// transaction and insights repositories. It holds a shared BigQuery client
// to avoid creating a new connection for each operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertStatement delegates to InsertStatementWithClient using the shared client.
func (r *Repository) InsertStatement(ctx context.Context, row *store.StatementRow) error {
	return InsertStatementWithClient(ctx, r.client, r.dataset, row)
}

// GetStatement delegates to GetStatementWithClient using the shared client.
func (r *Repository) GetStatement(ctx context.Context, userID, statementID string) (*store.StatementRow, error) {
	return GetStatementWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// ListStatements delegates to ListStatementsWithClient using the shared client.
func (r *Repository) ListStatements(ctx context.Context, userID string) ([]*store.StatementRow, error) {
	return ListStatementsWithClient(ctx, r.client, r.dataset, userID)
}

// MarkProcessing delegates to MarkProcessingWithClient using the shared client.
func (r *Repository) MarkProcessing(ctx context.Context, userID, statementID string) (bool, error) {
	return MarkProcessingWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// SetExtractionDetails delegates to SetExtractionDetailsWithClient using the shared client.
func (r *Repository) SetExtractionDetails(ctx context.Context, userID, statementID, currency, statementType string, metadata map[string]interface{}) error {
	return SetExtractionDetailsWithClient(ctx, r.client, r.dataset, userID, statementID, currency, statementType, metadata)
}

// MarkProcessed delegates to MarkProcessedWithClient using the shared client.
func (r *Repository) MarkProcessed(ctx context.Context, userID, statementID string) error {
	return MarkProcessedWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// MarkFailed delegates to MarkFailedWithClient using the shared client.
func (r *Repository) MarkFailed(ctx context.Context, userID, statementID string) {
	MarkFailedWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// DeleteStatement delegates to DeleteStatementWithClient using the shared client.
func (r *Repository) DeleteStatement(ctx context.Context, userID, statementID string) (bool, error) {
	return DeleteStatementWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// InsertTransactions delegates to InsertTransactionsWithClient using the shared client.
func (r *Repository) InsertTransactions(ctx context.Context, rows []*store.TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// ListTransactionsByUser delegates to ListTransactionsByUserWithClient using the shared client.
func (r *Repository) ListTransactionsByUser(ctx context.Context, userID string) ([]*store.TransactionRow, error) {
	return ListTransactionsByUserWithClient(ctx, r.client, r.dataset, userID)
}

// ListTransactionsByDateRange delegates to ListTransactionsByDateRangeWithClient using the shared client.
func (r *Repository) ListTransactionsByDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*store.TransactionRow, error) {
	return ListTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, userID, startDate, endDate)
}

// DeleteTransactionsByStatement delegates to DeleteTransactionsByStatementWithClient using the shared client.
func (r *Repository) DeleteTransactionsByStatement(ctx context.Context, userID, statementID string) error {
	return DeleteTransactionsByStatementWithClient(ctx, r.client, r.dataset, userID, statementID)
}

// GetLatestCache delegates to GetLatestCacheWithClient using the shared client.
func (r *Repository) GetLatestCache(ctx context.Context, userID string, now time.Time) (*store.InsightsCacheRow, error) {
	return GetLatestCacheWithClient(ctx, r.client, r.dataset, userID, now)
}

// DeleteCache delegates to DeleteCacheWithClient using the shared client.
func (r *Repository) DeleteCache(ctx context.Context, userID string) error {
	return DeleteCacheWithClient(ctx, r.client, r.dataset, userID)
}

// InsertCache delegates to InsertCacheWithClient using the shared client.
func (r *Repository) InsertCache(ctx context.Context, row *store.InsightsCacheRow) error {
	return InsertCacheWithClient(ctx, r.client, r.dataset, row)
}

// Ensure Repository implements the store interfaces.
var _ store.StatementRepository = (*Repository)(nil)
var _ store.TransactionRepository = (*Repository)(nil)
var _ store.InsightsRepository = (*Repository)(nil)

// runDML runs a DML query, waits for the job and returns the number of
// affected rows.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}
