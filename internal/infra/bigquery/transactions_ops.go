package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/store"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	dateFormat        = "2006-01-02"
)

const transactionColumns = `
	transaction_id,
	statement_id,
	user_id,
	transaction_date,
	description,
	amount,
	type,
	category,
	balance,
	currency,
	raw_data,
	created_ts
`

// InsertTransactionsWithClient inserts a batch of TransactionRow into the
// transactions table. The batch goes through a single inserter call;
// transactions are never mutated afterwards.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*store.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// ListTransactionsByUserWithClient retrieves all transactions of the user
// ordered by transaction date.
func ListTransactionsByUserWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]*store.TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY transaction_date, created_ts
	`, transactionColumns, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	return readTransactionRows(ctx, q)
}

// ListTransactionsByDateRangeWithClient retrieves the user's transactions
// within the date range, ordered by transaction date.
func ListTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string, startDate, endDate time.Time) ([]*store.TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE user_id = @user_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, created_ts
	`, transactionColumns, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	return readTransactionRows(ctx, q)
}

// DeleteTransactionsByStatementWithClient removes all transactions belonging
// to one statement of the user.
func DeleteTransactionsByStatementWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
	`, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteTransactionsByStatement: %w", err)
	}
	return nil
}

func readTransactionRows(ctx context.Context, q *bigquery.Query) ([]*store.TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("readTransactionRows: query read: %w", err)
	}

	var rows []*store.TransactionRow
	for {
		var r store.TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readTransactionRows: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
