package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"google.golang.org/api/iterator"
)

const statementsTable = "statements"

const statementColumns = `
	statement_id,
	user_id,
	file_name,
	storage_path,
	uploaded_at,
	processing_status,
	statement_type,
	currency,
	metadata
`

// InsertStatementWithClient inserts a statement row using DML so the row can
// be updated immediately afterwards (streaming-buffer rows cannot).
func InsertStatementWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *store.StatementRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			statement_id,
			user_id,
			file_name,
			storage_path,
			uploaded_at,
			processing_status,
			statement_type,
			currency,
			metadata
		)
		VALUES (
			@statement_id,
			@user_id,
			@file_name,
			@storage_path,
			@uploaded_at,
			@processing_status,
			NULLIF(@statement_type, ""),
			NULLIF(@currency, ""),
			SAFE.PARSE_JSON(@metadata)
		)
	`, dataset, statementsTable))

	statementType := ""
	if row.StatementType.Valid {
		statementType = row.StatementType.StringVal
	}
	currency := ""
	if row.Currency.Valid {
		currency = row.Currency.StringVal
	}
	metadata := ""
	if row.Metadata.Valid {
		b, err := json.Marshal(row.Metadata.JSONVal)
		if err != nil {
			return fmt.Errorf("InsertStatement: marshal metadata: %w", err)
		}
		metadata = string(b)
	}

	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: row.StatementID},
		{Name: "user_id", Value: row.UserID},
		{Name: "file_name", Value: row.FileName},
		{Name: "storage_path", Value: row.StoragePath},
		{Name: "uploaded_at", Value: row.UploadedAt},
		{Name: "processing_status", Value: row.ProcessingStatus},
		{Name: "statement_type", Value: statementType},
		{Name: "currency", Value: currency},
		{Name: "metadata", Value: metadata},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

// GetStatementWithClient retrieves a single statement scoped to the user.
// Returns nil when no such statement exists.
func GetStatementWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) (*store.StatementRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
		LIMIT 1
	`, statementColumns, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: query read: %w", err)
	}

	var row store.StatementRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatement: reading row: %w", err)
	}

	return &row, nil
}

// ListStatementsWithClient retrieves all statements of the user, newest first.
func ListStatementsWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]*store.StatementRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY uploaded_at DESC
	`, statementColumns, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: query read: %w", err)
	}

	var rows []*store.StatementRow
	for {
		var row store.StatementRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListStatements: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// MarkProcessingWithClient transitions a statement into "processing". The
// WHERE clause only claims statements in "uploaded" or "error": an active
// "processing" run must not be re-entered, and "processed" is terminal —
// re-running the pipeline would append the same transaction batch again.
func MarkProcessingWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET processing_status = @status
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
		  AND processing_status IN (@from_uploaded, @from_error)
	`, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: store.StatusProcessing},
		{Name: "from_uploaded", Value: store.StatusUploaded},
		{Name: "from_error", Value: store.StatusError},
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("MarkProcessing: %w", err)
	}
	return affected > 0, nil
}

// SetExtractionDetailsWithClient persists the inferred currency, statement
// kind and extraction metadata on the statement row mid-pipeline, so partial
// progress stays visible even if a later step fails.
func SetExtractionDetailsWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID, currency, statementType string, metadata map[string]interface{}) error {
	metadataJSON := ""
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("SetExtractionDetails: marshal metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET currency = NULLIF(@currency, ""),
		    statement_type = NULLIF(@statement_type, ""),
		    metadata = SAFE.PARSE_JSON(@metadata)
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
	`, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "currency", Value: currency},
		{Name: "statement_type", Value: statementType},
		{Name: "metadata", Value: metadataJSON},
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SetExtractionDetails: %w", err)
	}
	return nil
}

// MarkProcessedWithClient sets processing_status to "processed".
func MarkProcessedWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) error {
	if err := setStatus(ctx, client, dataset, userID, statementID, store.StatusProcessed); err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

// MarkFailedWithClient sets processing_status to "error". Failures here are
// logged, not returned: the pipeline is already unwinding from an earlier
// error and the caller cannot do anything useful with a second one.
func MarkFailedWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) {
	log := logger.FromContext(ctx)
	if err := setStatus(ctx, client, dataset, userID, statementID, store.StatusError); err != nil {
		log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to mark statement as errored")
	}
}

func setStatus(ctx context.Context, client *bigquery.Client, dataset, userID, statementID, status string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET processing_status = @status
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
	`, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	_, err := runDML(ctx, q)
	return err
}

// DeleteStatementWithClient removes the statement row and reports whether a
// row was deleted, so callers can distinguish a no-op delete.
func DeleteStatementWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, statementID string) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE statement_id = @statement_id
		  AND user_id = @user_id
	`, dataset, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: statementID},
		{Name: "user_id", Value: userID},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("DeleteStatement: %w", err)
	}
	return affected > 0, nil
}
