package bankdata

import (
	"context"
	"net/url"
)

const accountsPath = "/api/v2/accounts/"

// AccountsService reads metadata, details, balances and transactions for
// connected bank accounts.
type AccountsService struct {
	http doer
}

// TransactionParams bound the transaction window. Dates use YYYY-MM-DD;
// empty values are omitted and the institution's default window applies.
type TransactionParams struct {
	DateFrom string
	DateTo   string
}

// Get returns the service-side metadata for an account.
func (s *AccountsService) Get(ctx context.Context, id string) (*Account, error) {
	raw, err := s.http.Get(ctx, accountsPath+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	return decode[Account](raw)
}

// Details returns the bank-reported account record.
func (s *AccountsService) Details(ctx context.Context, id string) (*AccountDetails, error) {
	raw, err := s.http.Get(ctx, accountsPath+url.PathEscape(id)+"/details/", nil)
	if err != nil {
		return nil, err
	}
	return decode[AccountDetails](raw)
}

// Balances returns the balance entries reported by the bank.
func (s *AccountsService) Balances(ctx context.Context, id string) (*Balances, error) {
	raw, err := s.http.Get(ctx, accountsPath+url.PathEscape(id)+"/balances/", nil)
	if err != nil {
		return nil, err
	}
	return decode[Balances](raw)
}

// Transactions returns booked and pending transactions within the window.
func (s *AccountsService) Transactions(ctx context.Context, id string, params TransactionParams) (*Transactions, error) {
	return s.transactions(ctx, accountsPath+url.PathEscape(id)+"/transactions/", params)
}

// PremiumTransactions returns the enriched premium transaction feed.
func (s *AccountsService) PremiumTransactions(ctx context.Context, id string, params TransactionParams) (*Transactions, error) {
	return s.transactions(ctx, accountsPath+url.PathEscape(id)+"/premium/transactions/", params)
}

func (s *AccountsService) transactions(ctx context.Context, path string, params TransactionParams) (*Transactions, error) {
	query := url.Values{}
	if params.DateFrom != "" {
		query.Set("date_from", params.DateFrom)
	}
	if params.DateTo != "" {
		query.Set("date_to", params.DateTo)
	}

	raw, err := s.http.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return decode[Transactions](raw)
}
