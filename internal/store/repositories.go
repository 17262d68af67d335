package store

import (
	"context"
	"time"
)

// StatementRepository provides statement-related database operations.
// Every operation is scoped by user id; the persistence layer is expected to
// enforce row-level authorization as well, this scoping is defense in depth.
type StatementRepository interface {
	// InsertStatement inserts a single StatementRow.
	InsertStatement(ctx context.Context, row *StatementRow) error

	// GetStatement retrieves one statement of the user, or nil when absent.
	GetStatement(ctx context.Context, userID, statementID string) (*StatementRow, error)

	// ListStatements retrieves all statements of the user, newest first.
	ListStatements(ctx context.Context, userID string) ([]*StatementRow, error)

	// MarkProcessing transitions a statement into "processing". It only
	// claims statements in "uploaded" or "error" — "processed" is terminal
	// and an active run must not be re-entered — and reports whether the
	// transition happened.
	MarkProcessing(ctx context.Context, userID, statementID string) (bool, error)

	// SetExtractionDetails persists the inferred currency, the statement
	// kind and extraction metadata mid-pipeline, before transactions are
	// inserted.
	SetExtractionDetails(ctx context.Context, userID, statementID, currency, statementType string, metadata map[string]interface{}) error

	// MarkProcessed sets processing_status to "processed".
	MarkProcessed(ctx context.Context, userID, statementID string) error

	// MarkFailed sets processing_status to "error". The row itself stays
	// intact so the user can inspect or retry.
	MarkFailed(ctx context.Context, userID, statementID string)

	// DeleteStatement removes the statement row and reports whether a row
	// was deleted.
	DeleteStatement(ctx context.Context, userID, statementID string) (bool, error)
}

// TransactionRepository provides transaction-related database operations.
type TransactionRepository interface {
	// InsertTransactions inserts a batch of TransactionRow.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// ListTransactionsByUser retrieves all transactions of the user ordered
	// by transaction date.
	ListTransactionsByUser(ctx context.Context, userID string) ([]*TransactionRow, error)

	// ListTransactionsByDateRange retrieves the user's transactions within
	// the date range, ordered by transaction date.
	ListTransactionsByDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]*TransactionRow, error)

	// DeleteTransactionsByStatement removes all transactions of one statement.
	DeleteTransactionsByStatement(ctx context.Context, userID, statementID string) error
}

// InsightsRepository provides insights-cache database operations.
type InsightsRepository interface {
	// GetLatestCache retrieves the most recently generated cache row of the
	// user whose expiry is strictly after now, or nil when no valid row
	// exists. Absence is a valid state, not an error.
	GetLatestCache(ctx context.Context, userID string, now time.Time) (*InsightsCacheRow, error)

	// DeleteCache removes all cache rows of the user.
	DeleteCache(ctx context.Context, userID string) error

	// InsertCache inserts a single cache row.
	InsertCache(ctx context.Context, row *InsightsCacheRow) error
}
