package clients_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jung028/donation-platform/internal/clients"
)

func TestAccountClient_CheckFunds(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOK     bool
		wantErr    bool
		wantStatus int
	}{
		{name: "approved", status: http.StatusOK, body: "true", wantOK: true},
		{name: "denied", status: http.StatusOK, body: "false", wantOK: false},
		{name: "null verdict", status: http.StatusOK, body: "null", wantOK: false},
		{name: "empty body", status: http.StatusOK, body: "", wantOK: false},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: true, wantStatus: http.StatusInternalServerError},
		{name: "not found", status: http.StatusNotFound, body: "", wantErr: true, wantStatus: http.StatusNotFound},
		{name: "malformed", status: http.StatusOK, body: "{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/api/accounts/42/validate-funds" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}

				var body map[string]json.RawMessage
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode request: %v", err)
				}
				if string(body["amount"]) != "50.25" {
					t.Errorf("expected numeric amount 50.25, got %s", body["amount"])
				}
				if string(body["currency"]) != `"USD"` {
					t.Errorf("expected currency USD, got %s", body["currency"])
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := clients.NewAccountClient(server.URL+"/", time.Second)
			ok, err := client.CheckFunds(context.Background(), 42, decimal.RequireFromString("50.25"), "USD")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.wantStatus != 0 {
					var statusErr *clients.StatusError
					if !errors.As(err, &statusErr) {
						t.Fatalf("expected StatusError, got %T", err)
					}
					if statusErr.StatusCode != tt.wantStatus {
						t.Errorf("expected status %d, got %d", tt.wantStatus, statusErr.StatusCode)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("expected verdict %v, got %v", tt.wantOK, ok)
			}
		})
	}
}

func TestAccountClient_CheckFunds_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := clients.NewAccountClientWithHTTPClient(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.CheckFunds(ctx, 1, decimal.NewFromInt(1), "USD"); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestAccountClient_CheckFunds_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := clients.NewAccountClient(url, time.Second)
	if _, err := client.CheckFunds(context.Background(), 1, decimal.NewFromInt(1), "USD"); err == nil {
		t.Fatal("expected connection error, got nil")
	}
}
