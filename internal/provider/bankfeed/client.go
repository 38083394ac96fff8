// Package bankfeed is the HTTP adapter for the aggregation provider's
// REST API. It pages through transaction results, normalizes the amount
// sign convention (the feed reports outgoing amounts as positive; the
// core wants expenses negative) and paces requests with a token bucket
// so bulk syncs stay inside the provider's rate limits.
package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/provider"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL  string
	ClientID string
	Secret   string

	// RequestsPerSecond and Burst tune the pacing bucket. Zero values
	// fall back to 5 rps with a burst of 5.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
	pacer    *pacer
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bankfeed: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("bankfeed: parse base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		http:     httpClient,
		pacer:    newPacer(rps, burst),
	}, nil
}

// Wire shapes. Balances and amounts arrive as decimal numbers and are
// converted to cents at this boundary.
type (
	accountsResponse struct {
		Accounts []feedAccount `json:"accounts"`
	}

	feedAccount struct {
		AccountID       string       `json:"account_id"`
		Name            string       `json:"name"`
		OfficialName    string       `json:"official_name"`
		InstitutionName string       `json:"institution_name"`
		Type            string       `json:"type"`
		Subtype         string       `json:"subtype"`
		Balances        feedBalances `json:"balances"`
	}

	feedBalances struct {
		Current      float64 `json:"current"`
		Available    float64 `json:"available"`
		CurrencyCode string  `json:"iso_currency_code"`
	}

	transactionsResponse struct {
		Transactions      []feedTransaction `json:"transactions"`
		TotalTransactions int               `json:"total_transactions"`
	}

	feedTransaction struct {
		TransactionID string   `json:"transaction_id"`
		AccountID     string   `json:"account_id"`
		Amount        float64  `json:"amount"`
		CurrencyCode  string   `json:"iso_currency_code"`
		Date          string   `json:"date"`
		MerchantName  string   `json:"merchant_name"`
		Name          string   `json:"name"`
		Category      []string `json:"category"`
		Pending       bool     `json:"pending"`
	}
)

func (c *Client) FetchAccounts(ctx context.Context, credential string) ([]provider.Account, error) {
	var resp accountsResponse
	if err := c.get(ctx, "fetch accounts", "/accounts", credential, nil, &resp); err != nil {
		return nil, err
	}

	accounts := make([]provider.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, provider.Account{
			ProviderAccountID: a.AccountID,
			Name:              a.Name,
			OfficialName:      a.OfficialName,
			InstitutionName:   a.InstitutionName,
			Type:              a.Type,
			Subtype:           a.Subtype,
			BalanceCurrent:    core.MoneyFromFloat(a.Balances.Current),
			BalanceAvailable:  core.MoneyFromFloat(a.Balances.Available),
			Currency:          currencyOrDefault(a.Balances.CurrencyCode),
		})
	}
	return accounts, nil
}

func (c *Client) FetchTransactions(ctx context.Context, credential string, start, end time.Time) ([]provider.Transaction, error) {
	params := url.Values{
		"start_date": {start.Format("2006-01-02")},
		"end_date":   {end.Format("2006-01-02")},
	}

	var all []feedTransaction
	offset := 0
	for {
		if offset > 0 {
			params.Set("offset", strconv.Itoa(offset))
		}
		var resp transactionsResponse
		if err := c.get(ctx, "fetch transactions", "/transactions", credential, params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Transactions...)
		if len(all) >= resp.TotalTransactions || len(resp.Transactions) == 0 {
			break
		}
		offset = len(all)
	}

	transactions := make([]provider.Transaction, 0, len(all))
	for _, t := range all {
		date, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping feed transaction with unparseable date",
				"provider_transaction_id", t.TransactionID,
				"date", t.Date)
			continue
		}
		var category, subcategory string
		if len(t.Category) > 0 {
			category = t.Category[0]
		}
		if len(t.Category) > 1 {
			subcategory = t.Category[1]
		}
		transactions = append(transactions, provider.Transaction{
			ProviderTransactionID: t.TransactionID,
			ProviderAccountID:     t.AccountID,
			// Feed amounts are positive for outgoing money; the core
			// wants expenses negative.
			Amount:       core.MoneyFromFloat(t.Amount).Neg(),
			Currency:     currencyOrDefault(t.CurrencyCode),
			Date:         date,
			MerchantName: t.MerchantName,
			Description:  t.Name,
			Category:     category,
			Subcategory:  subcategory,
			Pending:      t.Pending,
		})
	}
	return transactions, nil
}

func (c *Client) RemoveLink(ctx context.Context, credential string) error {
	if err := c.pacer.wait(ctx); err != nil {
		return &provider.Error{Op: "remove link", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/item/remove", nil)
	if err != nil {
		return &provider.Error{Op: "remove link", Err: err}
	}
	c.setHeaders(req, credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return &provider.Error{Op: "remove link", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &provider.Error{Op: "remove link", StatusCode: resp.StatusCode, Err: statusErr(resp)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path, credential string, params url.Values, out any) error {
	if err := c.pacer.wait(ctx); err != nil {
		return &provider.Error{Op: op, Err: err}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &provider.Error{Op: op, Err: err}
	}
	c.setHeaders(req, credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return &provider.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &provider.Error{Op: op, StatusCode: resp.StatusCode, Err: statusErr(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &provider.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Client-Secret", c.secret)
	req.Header.Set("Accept", "application/json")
}

func statusErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) == 0 {
		return fmt.Errorf("%s", resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, body)
}

func currencyOrDefault(code string) string {
	if code == "" {
		return "USD"
	}
	return code
}
