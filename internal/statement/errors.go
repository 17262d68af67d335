package statement

import (
	"errors"
	"fmt"
)

// ErrStorageWrite indicates the document bytes failed to persist; no
// statement record is created in that case.
var ErrStorageWrite = errors.New("document storage write failed")

// ErrStatementInsert indicates the statement record creation failed after a
// successful storage write; the stored document is cleaned up to avoid
// orphaned blobs.
var ErrStatementInsert = errors.New("statement insert failed")

// ErrTransactionInsert indicates the bulk transaction insert failed.
var ErrTransactionInsert = errors.New("transaction insert failed")

// ErrStatementNotFound indicates the statement does not exist for the acting
// user.
var ErrStatementNotFound = errors.New("statement not found")

// ErrAlreadyProcessing indicates a pipeline run is already active for the
// statement. Concurrent runs could double-insert transactions, so the
// transition into "processing" refuses to re-enter.
var ErrAlreadyProcessing = errors.New("statement is already processing")

// ErrAlreadyProcessed indicates the statement has already completed
// processing. "processed" is terminal: its transactions are stored, and
// re-running the pipeline would insert them a second time. Only errored
// statements are retryable.
var ErrAlreadyProcessed = errors.New("statement is already processed")

// MalformedTransactionError reports a raw extracted transaction that failed
// shape validation, before any row is inserted.
type MalformedTransactionError struct {
	Index int
	Field string
}

func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("transaction %d: missing or invalid %q", e.Index, e.Field)
}
