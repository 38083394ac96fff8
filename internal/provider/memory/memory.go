// Package memory is a scripted in-process provider used by tests and
// the memory backend. Feeds are set up front; errors can be injected
// per operation to exercise failure isolation.
package memory

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/provider"
)

type Provider struct {
	mu           sync.Mutex
	accounts     []provider.Account
	transactions []provider.Transaction

	accountsErr        error
	transactionsErr    error
	transactionsErrFor map[string]error
	removeErr          error
	removed            []string
}

func New() *Provider {
	return &Provider{transactionsErrFor: make(map[string]error)}
}

func (p *Provider) SetAccounts(accounts []provider.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

func (p *Provider) SetTransactions(transactions []provider.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions = transactions
}

// FailAccounts makes FetchAccounts return err until cleared with nil.
func (p *Provider) FailAccounts(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsErr = err
}

// FailTransactions makes FetchTransactions return err until cleared.
func (p *Provider) FailTransactions(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactionsErr = err
}

// FailTransactionsFor fails FetchTransactions only for one credential,
// leaving the rest of the feed healthy.
func (p *Provider) FailTransactionsFor(credential string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactionsErrFor[credential] = err
}

func (p *Provider) FailRemoveLink(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeErr = err
}

// RemovedCredentials lists credentials passed to RemoveLink.
func (p *Provider) RemovedCredentials() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.removed...)
}

func (p *Provider) FetchAccounts(_ context.Context, _ string) ([]provider.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return append([]provider.Account(nil), p.accounts...), nil
}

func (p *Provider) FetchTransactions(_ context.Context, credential string, start, end time.Time) ([]provider.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.transactionsErrFor[credential]; err != nil {
		return nil, err
	}
	if p.transactionsErr != nil {
		return nil, p.transactionsErr
	}
	var out []provider.Transaction
	for _, t := range p.transactions {
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *Provider) RemoveLink(_ context.Context, credential string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removeErr != nil {
		return p.removeErr
	}
	p.removed = append(p.removed, credential)
	return nil
}
