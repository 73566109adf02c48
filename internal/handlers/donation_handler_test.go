package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Jung028/donation-platform/internal/db/memory"
	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/Jung028/donation-platform/internal/handlers"
	"github.com/Jung028/donation-platform/internal/models"
	"github.com/Jung028/donation-platform/internal/server"
)

// mockAccounts implements domain.AccountValidator for testing
type mockAccounts struct {
	checkFundsFunc func(context.Context, int64, decimal.Decimal, string) (bool, error)
}

func (m *mockAccounts) CheckFunds(ctx context.Context, accountID int64, amount decimal.Decimal, currency string) (bool, error) {
	if m.checkFundsFunc != nil {
		return m.checkFundsFunc(ctx, accountID, amount, currency)
	}
	return true, nil
}

// mockTransactions implements domain.TransactionExecutor for testing
type mockTransactions struct {
	calls                 atomic.Int32
	createTransactionFunc func(context.Context, domain.TransactionRequest) (*domain.TransactionResult, error)
}

func (m *mockTransactions) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.TransactionResult, error) {
	m.calls.Add(1)
	if m.createTransactionFunc != nil {
		return m.createTransactionFunc(ctx, req)
	}
	return &domain.TransactionResult{TransactionID: "tx-123", Status: "COMPLETED"}, nil
}

// failingInsertStore rejects every insert
type failingInsertStore struct {
	*memory.Store
}

func (s *failingInsertStore) Insert(context.Context, *domain.Donation) (int64, error) {
	return 0, errors.New("connection refused")
}

type testEnv struct {
	handler      http.Handler
	store        *memory.Store
	accounts     *mockAccounts
	transactions *mockTransactions
}

func newTestEnv(t *testing.T, store domain.DonationStore) *testEnv {
	t.Helper()

	mem := memory.NewStore()
	if store == nil {
		store = mem
	}
	env := &testEnv{
		store:        mem,
		accounts:     &mockAccounts{},
		transactions: &mockTransactions{},
	}

	service := domain.NewDonationService(store, env.accounts, env.transactions, zerolog.Nop(),
		domain.WithTimeouts(domain.Timeouts{Transaction: 50 * time.Millisecond}),
	)
	env.handler = server.HandlerWithOptions(handlers.NewHandler(service, zerolog.Nop()), server.ChiServerOptions{
		ErrorHandlerFunc: handlers.ParamErrorHandler,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

const validBody = `{"donorId":1,"campaignId":2,"amount":50.00,"currency":"USD"}`

func TestCreateDonation_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transactions.createTransactionFunc = func(ctx context.Context, req domain.TransactionRequest) (*domain.TransactionResult, error) {
		if req.SourceAccountID != 1 || req.DestinationAccountID != 2 {
			t.Errorf("unexpected accounts in transaction request: %+v", req)
		}
		if !req.Amount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Expected amount 50, got %s", req.Amount)
		}
		return &domain.TransactionResult{TransactionID: "tx-123", Status: "COMPLETED"}, nil
	}

	w := env.do(t, http.MethodPost, "/donations", validBody, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	resp := decode[models.Donation](t, w)
	if resp.Status != models.Completed {
		t.Errorf("Expected status COMPLETED, got %s", resp.Status)
	}
	if resp.TransactionId == nil || *resp.TransactionId != "tx-123" {
		t.Errorf("Expected transactionId tx-123, got %v", resp.TransactionId)
	}
	if resp.Amount != "50.0000" {
		t.Errorf("Expected amount 50.0000, got %s", resp.Amount)
	}
	if resp.Id <= 0 {
		t.Errorf("Expected positive id, got %d", resp.Id)
	}

	// The stored record matches the response
	w = env.do(t, http.MethodGet, "/donations/"+jsonInt(resp.Id), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	got := decode[models.Donation](t, w)
	if got.Status != models.Completed || got.TransactionId == nil || *got.TransactionId != "tx-123" {
		t.Errorf("Unexpected stored donation: %+v", got)
	}
}

func TestCreateDonation_InsufficientFunds(t *testing.T) {
	tests := []struct {
		name       string
		checkFunds func(context.Context, int64, decimal.Decimal, string) (bool, error)
	}{
		{
			name: "denied",
			checkFunds: func(context.Context, int64, decimal.Decimal, string) (bool, error) {
				return false, nil
			},
		},
		{
			name: "account service unavailable",
			checkFunds: func(context.Context, int64, decimal.Decimal, string) (bool, error) {
				return false, errors.New("connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.accounts.checkFundsFunc = tt.checkFunds

			w := env.do(t, http.MethodPost, "/donations", validBody, nil)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("Expected status 422, got %d", w.Code)
			}
			errResp := decode[models.BaseError](t, w)
			if errResp.Code != "INSUFFICIENT_FUNDS" {
				t.Errorf("Expected code INSUFFICIENT_FUNDS, got %s", errResp.Code)
			}
			if errResp.DonationId != nil {
				t.Errorf("Expected no donation id, got %d", *errResp.DonationId)
			}

			if n := env.transactions.calls.Load(); n != 0 {
				t.Errorf("Expected no transaction calls, got %d", n)
			}
			donations, _ := env.store.ListByDonor(context.Background(), 1)
			if len(donations) != 0 {
				t.Errorf("Expected no donation records, got %d", len(donations))
			}
		})
	}
}

func TestCreateDonation_TransactionTimeout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transactions.createTransactionFunc = func(ctx context.Context, req domain.TransactionRequest) (*domain.TransactionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	w := env.do(t, http.MethodPost, "/donations", validBody, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d: %s", w.Code, w.Body.String())
	}

	errResp := decode[models.BaseError](t, w)
	if errResp.Code != "TRANSACTION_FAILED" {
		t.Errorf("Expected code TRANSACTION_FAILED, got %s", errResp.Code)
	}
	if errResp.DonationId == nil {
		t.Fatal("Expected donationId in error response")
	}
	if errResp.Donation == nil || errResp.Donation.Status != models.Failed {
		t.Errorf("Expected FAILED donation in error response, got %+v", errResp.Donation)
	}

	stored, err := env.store.GetByID(context.Background(), *errResp.DonationId)
	if err != nil {
		t.Fatalf("Failed to load donation: %v", err)
	}
	if stored.Status != domain.DonationStatusFailed {
		t.Errorf("Expected stored status FAILED, got %s", stored.Status)
	}
	if stored.TransactionID != nil {
		t.Errorf("Expected no transaction id, got %s", *stored.TransactionID)
	}
}

func TestCreateDonation_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"donorId":`},
		{name: "missing donor", body: `{"campaignId":2,"amount":"5","currency":"USD"}`},
		{name: "zero amount", body: `{"donorId":1,"campaignId":2,"amount":"0","currency":"USD"}`},
		{name: "negative amount", body: `{"donorId":1,"campaignId":2,"amount":"-5","currency":"USD"}`},
		{name: "too many decimals", body: `{"donorId":1,"campaignId":2,"amount":"1.23456","currency":"USD"}`},
		{name: "lowercase currency", body: `{"donorId":1,"campaignId":2,"amount":"5","currency":"usd"}`},
		{name: "missing currency", body: `{"donorId":1,"campaignId":2,"amount":"5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do(t, http.MethodPost, "/donations", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", w.Code)
			}
			errResp := decode[models.BaseError](t, w)
			if errResp.Code != "INVALID_REQUEST" {
				t.Errorf("Expected code INVALID_REQUEST, got %s", errResp.Code)
			}
			if errResp.Description == nil || *errResp.Description == "" {
				t.Error("Expected a description")
			}
			if n := env.transactions.calls.Load(); n != 0 {
				t.Errorf("Expected no transaction calls, got %d", n)
			}
		})
	}
}

func TestCreateDonation_AmountPrecision(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/donations", `{"donorId":1,"campaignId":2,"amount":"12.3456","currency":"EUR"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	resp := decode[models.Donation](t, w)
	if resp.Amount != "12.3456" {
		t.Errorf("Expected amount 12.3456, got %s", resp.Amount)
	}
}

func TestCreateDonation_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t, nil)
	headers := map[string]string{"Idempotency-Key": "donation-abc"}

	first := env.do(t, http.MethodPost, "/donations", validBody, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", first.Code)
	}
	second := env.do(t, http.MethodPost, "/donations", validBody, headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 on replay, got %d", second.Code)
	}

	a := decode[models.Donation](t, first)
	b := decode[models.Donation](t, second)
	if a.Id != b.Id {
		t.Errorf("Expected replay to return donation %d, got %d", a.Id, b.Id)
	}
	if n := env.transactions.calls.Load(); n != 1 {
		t.Errorf("Expected exactly one transaction, got %d", n)
	}
}

func TestCreateDonation_IdempotencyKeyReuse(t *testing.T) {
	env := newTestEnv(t, nil)
	headers := map[string]string{"Idempotency-Key": "donation-xyz"}

	if w := env.do(t, http.MethodPost, "/donations", validBody, headers); w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/donations", `{"donorId":1,"campaignId":2,"amount":75,"currency":"USD"}`, headers)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for a reused key, got %d", w.Code)
	}
	resp := decode[models.BaseError](t, w)
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("Expected code INVALID_REQUEST, got %s", resp.Code)
	}
	if resp.DonationId != nil || resp.Donation != nil {
		t.Errorf("Expected no donation in the error, got %+v", resp)
	}
	if n := env.transactions.calls.Load(); n != 1 {
		t.Errorf("Expected exactly one transaction, got %d", n)
	}
}

func TestCreateDonation_StorageUnavailable(t *testing.T) {
	env := newTestEnv(t, &failingInsertStore{Store: memory.NewStore()})

	w := env.do(t, http.MethodPost, "/donations", validBody, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	errResp := decode[models.BaseError](t, w)
	if errResp.Code != "STORAGE_UNAVAILABLE" {
		t.Errorf("Expected code STORAGE_UNAVAILABLE, got %s", errResp.Code)
	}
	if n := env.transactions.calls.Load(); n != 0 {
		t.Errorf("Expected no transaction calls, got %d", n)
	}
}

func TestGetDonation_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/donations/999", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if errResp := decode[models.BaseError](t, w); errResp.Code != "NOT_FOUND" {
		t.Errorf("Expected code NOT_FOUND, got %s", errResp.Code)
	}

	w = env.do(t, http.MethodGet, "/donations/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if errResp := decode[models.BaseError](t, w); errResp.Code != "INVALID_PARAMETER" {
		t.Errorf("Expected code INVALID_PARAMETER, got %s", errResp.Code)
	}
}

func TestListDonations(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{
		`{"donorId":1,"campaignId":2,"amount":"10","currency":"USD"}`,
		`{"donorId":1,"campaignId":3,"amount":"20","currency":"USD"}`,
		`{"donorId":4,"campaignId":2,"amount":"30","currency":"USD"}`,
	} {
		if w := env.do(t, http.MethodPost, "/donations", body, nil); w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", w.Code)
		}
	}

	tests := []struct {
		path      string
		wantCount int
	}{
		{path: "/donations/donor/1", wantCount: 2},
		{path: "/donations/donor/4", wantCount: 1},
		{path: "/donations/campaign/2", wantCount: 2},
		{path: "/donations/campaign/3", wantCount: 1},
		{path: "/donations/campaign/99", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if tt.wantCount == 0 && strings.TrimSpace(w.Body.String()) != "[]" {
				t.Errorf("Expected empty array, got %s", w.Body.String())
			}
			list := decode[[]models.Donation](t, w)
			if len(list) != tt.wantCount {
				t.Errorf("Expected %d donations, got %d", tt.wantCount, len(list))
			}
		})
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
