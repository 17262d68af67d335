package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/store"
	"google.golang.org/genai"
)

// Client calls the external inference service for statement extraction and
// insights generation. Every call is a fresh external request: no retries,
// no response caching.
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
}

// NewClient creates an inference client for the given model. The timeout
// bounds each external call; unbounded model calls are a resource leak risk.
func NewClient(ctx context.Context, model string, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}

	return &Client{
		genai:   client,
		model:   model,
		timeout: timeout,
	}, nil
}

// ExtractStatement sends the statement document to the model together with
// the fixed extraction instruction and returns the structured result.
func (c *Client) ExtractStatement(ctx context.Context, document []byte, mimeType string) (*StatementExtraction, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: statementPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     document,
					},
				},
			},
		},
	}

	rawText, err := c.generate(ctx, contents)
	if err != nil {
		return nil, err
	}

	return parseStatementResponse(rawText)
}

// GenerateInsights sends the transaction list to the model with the insights
// instruction template. An empty list is rejected before any external call.
func (c *Client) GenerateInsights(ctx context.Context, txs []TransactionView) (*store.InsightsData, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactionData
	}

	txJSON, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("GenerateInsights: marshal transactions: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: insightsPrompt + string(txJSON)},
			},
		},
	}

	rawText, err := c.generate(ctx, contents)
	if err != nil {
		return nil, err
	}

	return parseInsightsResponse(rawText)
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{Status: apiErr.Status, Err: err}
		}
		return "", &ServiceError{Err: err}
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", ErrEmptyResponse
	}

	return rawText, nil
}

// parseStatementResponse applies the JSON-substring discipline to raw model
// output and validates the boundary schema.
func parseStatementResponse(rawText string) (*StatementExtraction, error) {
	objText, ok := extractJSONObject(rawText)
	if !ok {
		return nil, &FormatError{Detail: "no JSON object in response"}
	}

	var payload statementPayload
	if err := json.Unmarshal([]byte(objText), &payload); err != nil {
		return nil, &FormatError{Detail: "unmarshal response object", Err: err}
	}
	if payload.Transactions == nil {
		return nil, &FormatError{Detail: `missing "transactions" key`}
	}

	result := &StatementExtraction{
		Summary:      payload.Summary,
		Transactions: make([]RawTransaction, 0, len(payload.Transactions)),
	}

	for i, raw := range payload.Transactions {
		var tx RawTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, &FormatError{Detail: fmt.Sprintf("transaction %d is not an object", i), Err: err}
		}
		tx.Raw = raw
		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}

func parseInsightsResponse(rawText string) (*store.InsightsData, error) {
	objText, ok := extractJSONObject(rawText)
	if !ok {
		return nil, &FormatError{Detail: "no JSON object in response"}
	}

	var result store.InsightsData
	if err := json.Unmarshal([]byte(objText), &result); err != nil {
		return nil, &FormatError{Detail: "unmarshal insights object", Err: err}
	}

	return &result, nil
}
