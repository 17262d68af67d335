package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/insights"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/statement"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/rs/zerolog"
)

// maxUploadBytes caps statement document uploads at 20 MiB, matching the
// inference service's inline document limit.
const maxUploadBytes = 20 << 20

// StatementsHandler handles statement-related endpoints.
type StatementsHandler struct {
	svc       *statement.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(svc *statement.Service, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		svc:       svc,
		publisher: publisher,
		log:       log,
	}
}

// Upload handles POST /api/statements/upload
// The document bytes are the request body; the original filename comes from
// the "filename" query parameter. On success the statement is stored with
// status "uploaded" and a processing job is enqueued.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	fileName := r.URL.Query().Get("filename")
	if fileName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "filename query parameter is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Request body is empty")
		return
	}
	if len(data) > maxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Document exceeds upload size limit")
		return
	}

	st, err := h.svc.Upload(ctx, userID, fileName, contentType, data)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload statement")
		return
	}

	job := &jobs.ProcessStatementJob{
		StatementID: st.StatementID,
		UserID:      userID,
	}

	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("statement_id", st.StatementID).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	h.log.Info().
		Str("statement_id", st.StatementID).
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Msg("Statement uploaded and processing enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"statement_id": st.StatementID,
		"job_id":       job.JobID,
		"status":       string(st.ProcessingStatus),
	})
}

// EnqueueProcessing handles POST /api/statements/process
// Used to retry errored statements; uploads enqueue processing themselves.
func (h *StatementsHandler) EnqueueProcessing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StatementID string `json:"statement_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.StatementID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "statement_id is required")
		return
	}

	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	st, err := h.svc.Get(ctx, userID, req.StatementID)
	if err != nil {
		if errors.Is(err, statement.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", req.StatementID).Msg("Failed to load statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load statement")
		return
	}

	// "processed" is terminal; re-running the pipeline would duplicate the
	// stored transactions. Only errored statements are retryable.
	if st.ProcessingStatus == store.StatusProcessed {
		middleware.WriteError(w, http.StatusConflict, "Statement is already processed")
		return
	}

	job := &jobs.ProcessStatementJob{
		StatementID: req.StatementID,
		UserID:      userID,
	}

	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("statement_id", req.StatementID).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("statement_id", req.StatementID).Msg("Processing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       job.JobID,
		"statement_id": req.StatementID,
		"status":       string(job.Status),
	})
}

// ListStatements handles GET /api/statements
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	statements, err := h.svc.List(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// GetStatement handles GET /api/statements/{id}
func (h *StatementsHandler) GetStatement(w http.ResponseWriter, r *http.Request, statementID string) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	st, err := h.svc.Get(ctx, userID, statementID)
	if err != nil {
		if errors.Is(err, statement.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to get statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, st)
}

// DeleteStatement handles DELETE /api/statements/{id}
func (h *StatementsHandler) DeleteStatement(w http.ResponseWriter, r *http.Request, statementID string) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	if err := h.svc.Delete(ctx, userID, statementID); err != nil {
		if errors.Is(err, statement.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to delete statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete statement")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo store.TransactionRepository
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo store.TransactionRepository, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListTransactions handles GET /api/transactions
// Without date parameters it returns the user's full history; with
// start_date and/or end_date it narrows to the range.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var transactions []*store.TransactionRow
	var err error

	if startDateStr == "" && endDateStr == "" {
		transactions, err = h.repo.ListTransactionsByUser(ctx, userID)
	} else {
		startDate := time.Now().AddDate(-1, 0, 0)
		endDate := time.Now()

		if startDateStr != "" {
			startDate, err = time.Parse("2006-01-02", startDateStr)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
				return
			}
		}
		if endDateStr != "" {
			endDate, err = time.Parse("2006-01-02", endDateStr)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
				return
			}
		}

		transactions, err = h.repo.ListTransactionsByDateRange(ctx, userID, startDate, endDate)
	}

	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*store.TransactionRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// InsightsHandler handles insights cache endpoints.
type InsightsHandler struct {
	svc *insights.Service
	log zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc *insights.Service, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		svc: svc,
		log: log,
	}
}

// GetInsights handles GET /api/insights
// A missing or expired cache returns 204; the client decides whether to
// trigger regeneration.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	row, err := h.svc.GetValid(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to read insights cache")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read insights cache")
		return
	}
	if row == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeInsights(w, row)
}

// Regenerate handles POST /api/insights/regenerate
// Regeneration is synchronous; the fresh cache row is returned directly.
func (h *InsightsHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	row, err := h.svc.Regenerate(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, insights.ErrRegenerationInFlight):
			middleware.WriteError(w, http.StatusConflict, "Insights regeneration already in progress")
		case errors.Is(err, extraction.ErrNoTransactionData):
			middleware.WriteError(w, http.StatusUnprocessableEntity, "No transaction data available for analysis")
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to regenerate insights")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to regenerate insights")
		}
		return
	}

	h.writeInsights(w, row)
}

func (h *InsightsHandler) writeInsights(w http.ResponseWriter, row *store.InsightsCacheRow) {
	data, err := row.Data()
	if err != nil {
		h.log.Error().Err(err).Str("cache_id", row.CacheID).Msg("Stored insights payload is not valid JSON")
		middleware.WriteError(w, http.StatusInternalServerError, "Stored insights payload is invalid")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"insights":     data,
		"generated_at": row.GeneratedAt,
		"expires_at":   row.ExpiresAt,
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	if job.UserID != middleware.UserFromContext(ctx) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		StatementID: query.Get("statement_id"),
		UserID:      middleware.UserFromContext(ctx),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
