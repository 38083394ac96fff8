package bankfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/provider"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:           srv.URL,
		ClientID:          "client",
		Secret:            "secret",
		RequestsPerSecond: 1000, // no pacing in tests
		Burst:             1000,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchAccounts(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accounts": []map[string]any{
				{
					"account_id":       "acc_1",
					"name":             "Checking",
					"institution_name": "Chase Bank",
					"type":             "depository",
					"subtype":          "checking",
					"balances": map[string]any{
						"current":           2500.00,
						"available":         2400.50,
						"iso_currency_code": "USD",
					},
				},
			},
		})
	}))

	accounts, err := c.FetchAccounts(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	a := accounts[0]
	if a.ProviderAccountID != "acc_1" || a.BalanceCurrent.Cents != 250000 || a.BalanceAvailable.Cents != 240050 {
		t.Fatalf("unexpected account: %+v", a)
	}
}

func TestFetchTransactionsNormalizesSign(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_transactions": 2,
			"transactions": []map[string]any{
				{
					"transaction_id": "txn_exp",
					"account_id":     "acc_1",
					"amount":         50.00, // outgoing in feed convention
					"date":           "2025-06-01",
					"name":           "SHELL OIL 12345",
					"category":       []string{"Travel", "Gas Stations"},
				},
				{
					"transaction_id": "txn_inc",
					"account_id":     "acc_1",
					"amount":         -3000.00, // incoming in feed convention
					"date":           "2025-06-02",
					"name":           "ACME PAYROLL",
				},
			},
		})
	}))

	txns, err := c.FetchTransactions(context.Background(), "tok",
		time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Amount.Cents != -5000 {
		t.Errorf("expense stored as %d cents, want -5000", txns[0].Amount.Cents)
	}
	if txns[1].Amount.Cents != 300000 {
		t.Errorf("income stored as %d cents, want 300000", txns[1].Amount.Cents)
	}
	if txns[0].Category != "Travel" || txns[0].Subcategory != "Gas Stations" {
		t.Errorf("category split wrong: %q / %q", txns[0].Category, txns[0].Subcategory)
	}
	if txns[0].Currency != "USD" {
		t.Errorf("missing currency should default to USD, got %q", txns[0].Currency)
	}
}

func TestFetchTransactionsPagination(t *testing.T) {
	page := func(ids ...string) []map[string]any {
		out := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			out = append(out, map[string]any{
				"transaction_id": id,
				"account_id":     "acc_1",
				"amount":         1.00,
				"date":           "2025-06-01",
				"name":           "row " + id,
			})
		}
		return out
	}

	calls := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := map[string]any{"total_transactions": 3}
		if r.URL.Query().Get("offset") == "" {
			resp["transactions"] = page("t1", "t2")
		} else {
			if got := r.URL.Query().Get("offset"); got != "2" {
				t.Errorf("offset = %q, want 2", got)
			}
			resp["transactions"] = page("t3")
		}
		json.NewEncoder(w).Encode(resp)
	}))

	txns, err := c.FetchTransactions(context.Background(), "tok",
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchTransactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions across pages, got %d", len(txns))
	}
	if calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
}

func TestProviderErrorOnFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
	}))

	_, err := c.FetchAccounts(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *provider.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *provider.Error, got %T", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", perr.StatusCode)
	}
}

func TestPacerHonorsContext(t *testing.T) {
	p := newPacer(0.001, 1)
	if err := p.wait(context.Background()); err != nil {
		t.Fatalf("first token should be free: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.wait(ctx); err == nil {
		t.Fatal("expected context deadline while waiting for token")
	}
}
