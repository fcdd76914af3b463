package paystack

import "encoding/json"

// Transaction statuses reported by /transaction/verify.
const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusAbandoned  = "abandoned"
	StatusReversed   = "reversed"
	StatusOngoing    = "ongoing"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusQueued     = "queued"
	// StatusNotFound is synthesized when the gateway has no transaction for the reference.
	StatusNotFound = "not_found"
)

// DefinitiveFailure reports statuses after which the charge can never succeed.
func DefinitiveFailure(status string) bool {
	switch status {
	case StatusFailed, StatusAbandoned, StatusReversed, StatusNotFound:
		return true
	}
	return false
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type InitializeRequest struct {
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Success       bool            `json:"success"`
	Status        string          `json:"status"`
	Reference     string          `json:"reference"`
	AmountMinor   int64           `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customerEmail"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

type RefundResult struct {
	OK  bool            `json:"ok"`
	Raw json.RawMessage `json:"raw,omitempty"`
}

type TransferRequest struct {
	AmountMinor   int64
	RecipientCode string
	Reference     string
	Reason        string
	Metadata      map[string]any
}

type TransferResult struct {
	OK           bool            `json:"ok"`
	TransferCode string          `json:"transferCode"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

type AccountResolution struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type Recipient struct {
	RecipientCode string          `json:"recipient_code"`
	Name          string          `json:"name"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// wire shapes of the gateway's data objects
type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}
