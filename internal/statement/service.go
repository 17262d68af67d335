// Package statement owns the lifecycle of one statement record:
// uploaded → processing → (processed | error). All transitions go through
// the Service; nothing else mutates statement rows.
package statement

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-insights/internal/currency"
	"github.com/dvloznov/statement-insights/internal/docstore"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

// Extractor sends a statement document to the inference service and returns
// the structured extraction. This interface enables mocking the external
// model in tests.
type Extractor interface {
	ExtractStatement(ctx context.Context, document []byte, mimeType string) (*extraction.StatementExtraction, error)
}

// Service orchestrates the statement pipeline.
type Service struct {
	statements   store.StatementRepository
	transactions store.TransactionRepository
	documents    docstore.DocumentStore
	extractor    Extractor
	bucket       string
	currencyOpts currency.Options
}

// NewService creates a statement Service. All collaborators are injected so
// the pipeline is testable with fakes.
func NewService(statements store.StatementRepository, transactions store.TransactionRepository, documents docstore.DocumentStore, extractor Extractor, bucket string, currencyOpts currency.Options) *Service {
	return &Service{
		statements:   statements,
		transactions: transactions,
		documents:    documents,
		extractor:    extractor,
		bucket:       bucket,
		currencyOpts: currencyOpts,
	}
}

// Upload stores the document bytes and creates the statement record with
// status "uploaded". If the record insert fails after a successful storage
// write, the stored blob is deleted so no orphan is left behind.
func (s *Service) Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*store.StatementRow, error) {
	statementID := uuid.NewString()
	storagePath := fmt.Sprintf("gs://%s/statements/%s/%s-%s", s.bucket, userID, statementID, filepath.Base(fileName))

	if err := s.documents.Put(ctx, storagePath, contentType, data); err != nil {
		return nil, fmt.Errorf("Upload: %w: %v", ErrStorageWrite, err)
	}

	row := &store.StatementRow{
		StatementID:      statementID,
		UserID:           userID,
		FileName:         filepath.Base(fileName),
		StoragePath:      storagePath,
		UploadedAt:       time.Now(),
		ProcessingStatus: store.StatusUploaded,
	}

	if err := s.statements.InsertStatement(ctx, row); err != nil {
		log := logger.FromContext(ctx)
		if cleanupErr := s.documents.Delete(ctx, storagePath); cleanupErr != nil {
			log.Error().Err(cleanupErr).Str("storage_path", storagePath).Msg("Failed to clean up orphaned document")
		}
		return nil, fmt.Errorf("Upload: %w: %v", ErrStatementInsert, err)
	}

	return row, nil
}

// Process runs the extraction pipeline for one statement. Any failure after
// entering "processing" transitions the statement to "error" and stops; the
// row stays intact so the user can inspect or retry. Retrying an errored
// statement simply calls Process again; a processed statement is terminal
// and refuses re-entry.
func (s *Service) Process(ctx context.Context, userID, statementID string) error {
	st, err := s.statements.GetStatement(ctx, userID, statementID)
	if err != nil {
		return fmt.Errorf("Process: %w", err)
	}
	if st == nil {
		return ErrStatementNotFound
	}
	if st.ProcessingStatus == store.StatusProcessed {
		return ErrAlreadyProcessed
	}

	entered, err := s.statements.MarkProcessing(ctx, userID, statementID)
	if err != nil {
		return fmt.Errorf("Process: entering processing: %w", err)
	}
	if !entered {
		return ErrAlreadyProcessing
	}

	if err := s.runPipeline(ctx, st); err != nil {
		s.statements.MarkFailed(ctx, userID, statementID)
		return err
	}

	if err := s.statements.MarkProcessed(ctx, userID, statementID); err != nil {
		s.statements.MarkFailed(ctx, userID, statementID)
		return fmt.Errorf("Process: marking processed: %w", err)
	}

	return nil
}

func (s *Service) runPipeline(ctx context.Context, st *store.StatementRow) error {
	data, err := s.documents.Fetch(ctx, st.StoragePath)
	if err != nil {
		return fmt.Errorf("Process: fetching document: %w", err)
	}

	ext, err := s.extractor.ExtractStatement(ctx, data, mimeTypeForFile(st.FileName))
	if err != nil {
		return fmt.Errorf("Process: extraction: %w", err)
	}

	code := currency.InferWithOptions(ext.Summary.Currency, st.FileName, s.currencyOpts)

	// Persist currency and kind before the transaction insert so partial
	// progress stays visible even if a later step fails.
	statementType := strings.ToLower(strings.TrimSpace(ext.Summary.StatementType))
	if err := s.statements.SetExtractionDetails(ctx, st.UserID, st.StatementID, code, statementType, extractionMetadata(ext.Summary, statementType)); err != nil {
		return fmt.Errorf("Process: persisting extraction details: %w", err)
	}

	rows, err := normalizeTransactions(ext.Transactions, st.StatementID, st.UserID, code, time.Now())
	if err != nil {
		return fmt.Errorf("Process: %w", err)
	}

	if err := s.transactions.InsertTransactions(ctx, rows); err != nil {
		return fmt.Errorf("Process: %w: %v", ErrTransactionInsert, err)
	}

	return nil
}

// Delete removes a statement, its transactions and its stored document.
// Deleting an unknown statement returns ErrStatementNotFound.
func (s *Service) Delete(ctx context.Context, userID, statementID string) error {
	st, err := s.statements.GetStatement(ctx, userID, statementID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if st == nil {
		return ErrStatementNotFound
	}

	if err := s.transactions.DeleteTransactionsByStatement(ctx, userID, statementID); err != nil {
		return fmt.Errorf("Delete: deleting transactions: %w", err)
	}

	if err := s.documents.Delete(ctx, st.StoragePath); err != nil {
		// The blob may already be gone from an earlier partial delete;
		// the row removal below is what makes the delete observable.
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("storage_path", st.StoragePath).Msg("Failed to delete stored document")
	}

	deleted, err := s.statements.DeleteStatement(ctx, userID, statementID)
	if err != nil {
		return fmt.Errorf("Delete: deleting statement: %w", err)
	}
	if !deleted {
		return ErrStatementNotFound
	}

	return nil
}

// Get retrieves one statement of the user.
func (s *Service) Get(ctx context.Context, userID, statementID string) (*store.StatementRow, error) {
	st, err := s.statements.GetStatement(ctx, userID, statementID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if st == nil {
		return nil, ErrStatementNotFound
	}
	return st, nil
}

// List retrieves all statements of the user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*store.StatementRow, error) {
	rows, err := s.statements.ListStatements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return rows, nil
}

func mimeTypeForFile(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/pdf"
	}
}
