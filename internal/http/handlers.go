package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

type accountView struct {
	ID               int64   `json:"id"`
	UserID           int64   `json:"user_id"`
	Name             string  `json:"name"`
	InstitutionName  string  `json:"institution_name"`
	AccountType      string  `json:"account_type"`
	DisplayName      string  `json:"display_name"`
	BalanceCurrent   float64 `json:"balance_current"`
	BalanceAvailable float64 `json:"balance_available"`
	Currency         string  `json:"currency"`
	SyncStatus       string  `json:"sync_status"`
	LastSyncAt       string  `json:"last_sync_at,omitempty"`
	Linked           bool    `json:"linked"`
	Active           bool    `json:"active"`
}

func newAccountView(a core.Account) accountView {
	v := accountView{
		ID:               a.ID,
		UserID:           a.UserID,
		Name:             a.Name,
		InstitutionName:  a.InstitutionName,
		AccountType:      a.AccountType,
		DisplayName:      a.DisplayName(),
		BalanceCurrent:   a.BalanceCurrent.Float(),
		BalanceAvailable: a.BalanceAvailable.Float(),
		Currency:         a.Currency,
		SyncStatus:       string(a.SyncStatus),
		Linked:           a.Linked(),
		Active:           a.Active,
	}
	if !a.LastSyncAt.IsZero() {
		v.LastSyncAt = a.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return v
}

type transactionView struct {
	ID           int64         `json:"id"`
	AccountID    int64         `json:"account_id"`
	Amount       float64       `json:"amount"`
	Currency     string        `json:"currency"`
	Date         string        `json:"date"`
	Description  string        `json:"description"`
	MerchantName string        `json:"merchant_name,omitempty"`
	Pending      bool          `json:"pending"`
	Category     *categoryView `json:"category,omitempty"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Amount:       t.Amount.Float(),
		Currency:     t.Currency,
		Date:         t.Date.Format("2006-01-02"),
		Description:  t.Description,
		MerchantName: t.MerchantName,
		Pending:      t.Pending,
	}
}

type categoryView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	FullName string  `json:"full_name"`
	Color    string  `json:"color"`
	ParentID int64   `json:"parent_id,omitempty"`
	Budget   float64 `json:"budget_limit,omitempty"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{
		ID:       c.ID,
		Name:     c.Name,
		FullName: c.FullName(),
		Color:    c.Color,
		ParentID: c.ParentID,
		Budget:   c.BudgetLimit.Float(),
	}
}

type syncRequest struct {
	Scope     string `json:"scope"`
	AccountID int64  `json:"account_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
}

type batchResultView struct {
	Synced  int             `json:"synced"`
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Errors  []batchErrorView `json:"errors"`
}

type batchErrorView struct {
	AccountID   int64  `json:"account_id"`
	AccountName string `json:"account_name"`
	Error       string `json:"error"`
}

func newBatchResultView(r services.BatchResult) batchResultView {
	v := batchResultView{
		Synced:  r.Synced,
		Created: r.Created,
		Updated: r.Updated,
		Errors:  []batchErrorView{},
	}
	for _, e := range r.Errors {
		v.Errors = append(v.Errors, batchErrorView{
			AccountID:   e.AccountID,
			AccountName: e.AccountName,
			Error:       e.Err.Error(),
		})
	}
	return v
}

// handleSync queues a sync request for the worker, or runs it inline
// when no queue is configured.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Scope == "" {
		switch {
		case req.AccountID != 0:
			req.Scope = amqp.ScopeAccount
		case req.UserID != 0:
			req.Scope = amqp.ScopeUser
		default:
			req.Scope = amqp.ScopeAll
		}
	}
	msg := &amqp.SyncRequestMessage{
		Scope:       req.Scope,
		AccountID:   req.AccountID,
		UserID:      req.UserID,
		RequestedAt: time.Now(),
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSyncRequest(r.Context(), msg); err != nil {
			slog.ErrorContext(r.Context(), "Failed to publish sync request", "error", err)
			writeError(w, http.StatusServiceUnavailable, "failed to queue sync request")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "scope": msg.Scope})
		return
	}

	switch msg.Scope {
	case amqp.ScopeAccount:
		account, err := s.store.GetAccount(r.Context(), msg.AccountID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		result, err := s.engine.SyncAccount(r.Context(), account)
		if err != nil {
			if errors.Is(err, core.ErrNotLinked) {
				writeError(w, http.StatusConflict, "account is not linked to a provider")
				return
			}
			slog.ErrorContext(r.Context(), "Inline account sync failed",
				"account_id", msg.AccountID, "error", err)
			writeError(w, http.StatusBadGateway, "sync failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"created": result.Created, "updated": result.Updated})
	case amqp.ScopeUser:
		result, err := s.engine.SyncUserAccounts(r.Context(), msg.UserID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newBatchResultView(result))
	default:
		result, err := s.engine.SyncAllAccounts(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newBatchResultView(result))
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	accounts, err := s.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views, "count": len(views)})
}

func (s *Server) handleUnlinkAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.Unlink(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	categories, err := s.store.ListCategoriesByUser(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, newCategoryView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": views, "count": len(views)})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := services.TransactionFilter{}
	var err error
	if filter.UserID, err = queryInt64(r, "user_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.AccountID, err = queryInt64(r, "account_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.UserID == 0 && filter.AccountID == 0 {
		writeError(w, http.StatusBadRequest, "user_id or account_id is required")
		return
	}
	if filter.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Start, err = queryDate(r, "start"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.End, err = queryDate(r, "end"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Pending, err = queryBool(r, "pending"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.transactions.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": s.transactionViews(r, txs),
		"count":        len(txs),
	})
}

func (s *Server) handleListUncategorized(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.transactions.ListUncategorized(r.Context(), userID, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, newTransactionView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": views, "count": len(views)})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	view := newTransactionView(tx)
	if category, err := s.transactions.PrimaryCategory(r.Context(), tx.ID); err == nil {
		cv := newCategoryView(category)
		view.Category = &cv
	}
	writeJSON(w, http.StatusOK, view)
}

type categorizeRequest struct {
	CategoryID int64 `json:"category_id"`
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req categorizeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CategoryID < 1 {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	classification, err := s.transactions.Categorize(r.Context(), id, req.CategoryID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	category, err := s.store.GetCategory(r.Context(), classification.CategoryID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id":  classification.TransactionID,
		"category":        newCategoryView(category),
		"confidence":      classification.Confidence,
		"auto_classified": classification.AutoClassified,
	})
}

// transactionViews builds views with categories resolved per row.
func (s *Server) transactionViews(r *http.Request, txs []core.Transaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		view := newTransactionView(t)
		if category, err := s.transactions.PrimaryCategory(r.Context(), t.ID); err == nil {
			cv := newCategoryView(category)
			view.Category = &cv
		}
		views = append(views, view)
	}
	return views
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var inv *core.InvariantViolationError
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &inv):
		slog.ErrorContext(r.Context(), "Data invariant violated", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
