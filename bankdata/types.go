package bankdata

import "encoding/json"

// Page is a single page of a paginated listing. Pagination is manual:
// callers pass limit/offset and follow Next themselves.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ListParams are the manual pagination controls accepted by list calls.
// Zero values are omitted from the query string.
type ListParams struct {
	Limit  int
	Offset int
}

// Institution is a bank reachable through the service.
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	TransactionTotalDays string   `json:"transaction_total_days"`
	Countries            []string `json:"countries"`
	Logo                 string   `json:"logo"`
}

// EndUserAgreement captures the scope and duration of consented access.
type EndUserAgreement struct {
	ID                 string   `json:"id"`
	Created            string   `json:"created"`
	InstitutionID      string   `json:"institution_id"`
	MaxHistoricalDays  int      `json:"max_historical_days"`
	AccessValidForDays int      `json:"access_valid_for_days"`
	AccessScope        []string `json:"access_scope"`
	Accepted           *string  `json:"accepted"`
}

// CreateAgreementRequest is the payload for creating an end-user agreement.
// Zero fields fall back to server defaults.
type CreateAgreementRequest struct {
	InstitutionID      string   `json:"institution_id"`
	MaxHistoricalDays  int      `json:"max_historical_days,omitempty"`
	AccessValidForDays int      `json:"access_valid_for_days,omitempty"`
	AccessScope        []string `json:"access_scope,omitempty"`
}

// AcceptAgreementRequest carries the end-user context for accepting an
// agreement.
type AcceptAgreementRequest struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}

// Requisition links an end user to an institution and collects the
// accounts granted during the bank's authorization flow.
type Requisition struct {
	ID            string   `json:"id"`
	Created       string   `json:"created"`
	Redirect      string   `json:"redirect"`
	Status        string   `json:"status"`
	InstitutionID string   `json:"institution_id"`
	Agreement     string   `json:"agreement"`
	Reference     string   `json:"reference"`
	Accounts      []string `json:"accounts"`
	UserLanguage  string   `json:"user_language"`
	Link          string   `json:"link"`
	SSN           string   `json:"ssn"`
}

// CreateRequisitionRequest is the payload for creating a requisition.
type CreateRequisitionRequest struct {
	Redirect          string `json:"redirect"`
	InstitutionID     string `json:"institution_id"`
	Reference         string `json:"reference,omitempty"`
	Agreement         string `json:"agreement,omitempty"`
	UserLanguage      string `json:"user_language,omitempty"`
	SSN               string `json:"ssn,omitempty"`
	AccountSelection  bool   `json:"account_selection,omitempty"`
	RedirectImmediate bool   `json:"redirect_immediate,omitempty"`
}

// Account is the service-side metadata for a connected bank account.
type Account struct {
	ID            string `json:"id"`
	Created       string `json:"created"`
	LastAccessed  string `json:"last_accessed"`
	IBAN          string `json:"iban"`
	InstitutionID string `json:"institution_id"`
	Status        string `json:"status"`
	OwnerName     string `json:"owner_name"`
}

// AccountDetails is the bank-reported account record. The account shape
// varies per institution, so the inner document stays schema-loose.
type AccountDetails struct {
	Account json.RawMessage `json:"account"`
}

// BalanceAmount is a monetary value with its currency.
type BalanceAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Balance is one balance entry reported by the bank.
type Balance struct {
	BalanceAmount BalanceAmount `json:"balanceAmount"`
	BalanceType   string        `json:"balanceType"`
	ReferenceDate string        `json:"referenceDate"`
}

// Balances is the balances listing for an account.
type Balances struct {
	Balances []Balance `json:"balances"`
}

// Transaction is one booked or pending transaction. Institutions differ
// widely in which optional fields they fill.
type Transaction struct {
	TransactionID                     string        `json:"transactionId"`
	BookingDate                       string        `json:"bookingDate"`
	ValueDate                         string        `json:"valueDate"`
	TransactionAmount                 BalanceAmount `json:"transactionAmount"`
	CreditorName                      string        `json:"creditorName"`
	DebtorName                        string        `json:"debtorName"`
	RemittanceInformationUnstructured string        `json:"remittanceInformationUnstructured"`
}

// Transactions groups an account's transactions by booking state.
type Transactions struct {
	Transactions struct {
		Booked  []Transaction `json:"booked"`
		Pending []Transaction `json:"pending"`
	} `json:"transactions"`
}
