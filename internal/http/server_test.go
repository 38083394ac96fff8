package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/provider"
	providermem "fintrack/internal/provider/memory"
	"fintrack/internal/services"
	storemem "fintrack/internal/storage/memory"
)

type fixture struct {
	server  *Server
	store   *storemem.Store
	feed    *providermem.Provider
	userID  int64
	account core.Account
}

func newFixture(t *testing.T, publisher SyncPublisher) *fixture {
	t.Helper()
	ctx := context.Background()

	store := storemem.NewStore()
	feed := providermem.New()
	engine := services.NewSyncEngine(store, feed)
	accounts := services.NewAccountService(store, feed)
	transactions := services.NewTransactionService(store)

	userID, err := store.CreateUser(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := services.InitDefaultCategories(ctx, store, userID); err != nil {
		t.Fatalf("InitDefaultCategories() error = %v", err)
	}
	account, err := store.CreateAccount(ctx, core.Account{
		UserID:            userID,
		Name:              "Checking",
		InstitutionName:   "Test Bank",
		AccountType:       "checking",
		ProviderAccountID: "acc-1",
		Credential:        "token-1",
		Currency:          "USD",
		Active:            true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	server := NewServer(":0", store, engine, accounts, transactions, publisher)
	return &fixture{server: server, store: store, feed: feed, userID: userID, account: account}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/accounts?user_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/accounts = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accounts []accountView `json:"accounts"`
		Count    int           `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 || len(resp.Accounts) != 1 {
		t.Fatalf("accounts = %+v", resp)
	}
	if resp.Accounts[0].DisplayName != "Test Bank - Checking" {
		t.Errorf("DisplayName = %q", resp.Accounts[0].DisplayName)
	}
	if !resp.Accounts[0].Linked {
		t.Error("account should be linked")
	}
}

func TestListAccountsRequiresUserID(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/accounts", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /api/v1/accounts without user_id = %d, want 400", rec.Code)
	}
}

func TestSyncInlineRunsBatch(t *testing.T) {
	f := newFixture(t, nil)

	f.feed.SetTransactions([]provider.Transaction{{
		ProviderTransactionID: "tx-1",
		ProviderAccountID:     f.account.ProviderAccountID,
		Amount:                core.Money{Cents: -1850},
		Currency:              "USD",
		Date:                  time.Now().AddDate(0, 0, -1),
		Description:           "STARBUCKS STORE 123",
	}})
	f.feed.SetAccounts([]provider.Account{{ProviderAccountID: f.account.ProviderAccountID, Currency: "USD"}})

	rec := f.do(t, http.MethodPost, "/api/v1/sync", `{"user_id": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/sync = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp batchResultView
	decodeBody(t, rec, &resp)
	if resp.Synced != 1 || resp.Created != 1 {
		t.Errorf("sync result = %+v, want 1 synced, 1 created", resp)
	}
}

type stubPublisher struct {
	published []*amqp.SyncRequestMessage
}

func (p *stubPublisher) PublishSyncRequest(_ context.Context, msg *amqp.SyncRequestMessage) error {
	p.published = append(p.published, msg)
	return nil
}

func TestSyncQueuesWhenPublisherConfigured(t *testing.T) {
	pub := &stubPublisher{}
	f := newFixture(t, pub)

	rec := f.do(t, http.MethodPost, "/api/v1/sync", `{"account_id": `+jsonInt(f.account.ID)+`}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/v1/sync = %d, want 202", rec.Code)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if pub.published[0].Scope != amqp.ScopeAccount || pub.published[0].AccountID != f.account.ID {
		t.Errorf("published message = %+v", pub.published[0])
	}
}

func TestCategorizeEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tx, err := f.store.CreateTransaction(ctx, core.Transaction{
		AccountID:             f.account.ID,
		ProviderTransactionID: "tx-1",
		Amount:                core.Money{Cents: -2500},
		Currency:              "USD",
		Date:                  time.Now(),
		Description:           "Netflix Subscription",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	categories, _ := f.store.ListCategoriesByUser(ctx, f.userID)
	var entertainment core.Category
	for _, c := range categories {
		if c.Name == "Entertainment" {
			entertainment = c
		}
	}
	if entertainment.ID == 0 {
		t.Fatal("Entertainment category missing")
	}

	rec := f.do(t, http.MethodPut,
		"/api/v1/transactions/"+strconv.FormatInt(tx.ID, 10)+"/categorize",
		`{"category_id": `+jsonInt(entertainment.ID)+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT categorize = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TransactionID  int64        `json:"transaction_id"`
		Category       categoryView `json:"category"`
		Confidence     float64      `json:"confidence"`
		AutoClassified bool         `json:"auto_classified"`
	}
	decodeBody(t, rec, &resp)
	if resp.TransactionID != tx.ID || resp.Category.ID != entertainment.ID {
		t.Errorf("categorize response = %+v", resp)
	}
	if resp.Confidence != 1.0 || resp.AutoClassified {
		t.Errorf("manual categorization = confidence %v auto %v", resp.Confidence, resp.AutoClassified)
	}

	// The transaction detail now carries the category.
	rec = f.do(t, http.MethodGet, "/api/v1/transactions/"+strconv.FormatInt(tx.ID, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET transaction = %d", rec.Code)
	}
	var view transactionView
	decodeBody(t, rec, &view)
	if view.Category == nil || view.Category.ID != entertainment.ID {
		t.Errorf("transaction view category = %+v", view.Category)
	}
}

func TestCategorizeUnknownTransaction(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPut, "/api/v1/transactions/999/categorize", `{"category_id": 1}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT categorize unknown = %d, want 404", rec.Code)
	}
}

func TestListUncategorized(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.store.CreateTransaction(ctx, core.Transaction{
		AccountID:             f.account.ID,
		ProviderTransactionID: "tx-1",
		Amount:                core.Money{Cents: -900},
		Currency:              "USD",
		Date:                  time.Now(),
		Description:           "Mystery charge",
	}); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/transactions/uncategorized?user_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET uncategorized = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 {
		t.Errorf("uncategorized count = %d, want 1", resp.Count)
	}
}

func TestUnlinkAccountEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/accounts/"+strconv.FormatInt(f.account.ID, 10)+"/unlink", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST unlink = %d, body %s", rec.Code, rec.Body.String())
	}
	var view accountView
	decodeBody(t, rec, &view)
	if view.Linked || view.SyncStatus != string(core.SyncStatusDisconnected) {
		t.Errorf("account after unlink = %+v", view)
	}
}

func TestListTransactionsValidation(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/transactions", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET transactions without filter = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/transactions?user_id=1&start=March", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET transactions with bad date = %d, want 400", rec.Code)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
