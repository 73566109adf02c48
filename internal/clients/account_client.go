package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const accountService = "account service"

// AccountClient calls the funds-check endpoint of the account service.
type AccountClient struct {
	baseURL    string
	httpClient *http.Client
}

type fundsValidationRequest struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// NewAccountClient creates a new AccountClient for the service at baseURL.
// timeout bounds a single call end to end; zero leaves it to the caller's context.
func NewAccountClient(baseURL string, timeout time.Duration) *AccountClient {
	return NewAccountClientWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewAccountClientWithHTTPClient creates a new AccountClient from an existing http.Client.
// This is useful for testing with httptest servers.
func NewAccountClientWithHTTPClient(baseURL string, httpClient *http.Client) *AccountClient {
	return &AccountClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CheckFunds asks whether accountID can afford amount in currency.
// A missing or null verdict counts as "no"; transport and status failures are errors.
func (c *AccountClient) CheckFunds(ctx context.Context, accountID int64, amount decimal.Decimal, currency string) (bool, error) {
	url := fmt.Sprintf("%s/api/accounts/%d/validate-funds", c.baseURL, accountID)

	var verdict *bool
	_, err := postJSON(ctx, c.httpClient, accountService, url, fundsValidationRequest{
		Amount:   json.Number(amount.String()),
		Currency: currency,
	}, &verdict)
	if err != nil {
		return false, err
	}

	return verdict != nil && *verdict, nil
}
