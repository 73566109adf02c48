package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/shopspring/decimal"
)

const transactionService = "transaction service"

// TransactionClient calls the transaction service to move funds.
// It never retries: a repeated call could move the funds twice.
type TransactionClient struct {
	baseURL    string
	httpClient *http.Client
}

type createTransactionRequest struct {
	SourceAccountID      int64       `json:"sourceAccountId"`
	DestinationAccountID int64       `json:"destinationAccountId"`
	Amount               json.Number `json:"amount"`
	Currency             string      `json:"currency"`
	Description          string      `json:"description"`
}

type createTransactionResponse struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// NewTransactionClient creates a new TransactionClient for the service at baseURL.
func NewTransactionClient(baseURL string, timeout time.Duration) *TransactionClient {
	return NewTransactionClientWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewTransactionClientWithHTTPClient creates a new TransactionClient from an existing http.Client.
// This is useful for testing with httptest servers.
func NewTransactionClientWithHTTPClient(baseURL string, httpClient *http.Client) *TransactionClient {
	return &TransactionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateTransaction asks the transaction service to move funds.
// An empty 2xx response yields a nil result and no error.
func (c *TransactionClient) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.TransactionResult, error) {
	var resp createTransactionResponse
	ok, err := postJSON(ctx, c.httpClient, transactionService, c.baseURL+"/api/transactions", createTransactionRequest{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               json.Number(req.Amount.String()),
		Currency:             req.Currency,
		Description:          req.Description,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return &domain.TransactionResult{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
	}, nil
}
