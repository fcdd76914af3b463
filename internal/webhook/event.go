package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Handled event types.
const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// Event is the gateway's webhook envelope.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeData is the subset of a charge object used for reconciliation.
type ChargeData struct {
	ID        int64    `json:"id"`
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Customer  Customer `json:"customer"`
	Metadata  Metadata `json:"metadata"`
}

type Customer struct {
	Email string `json:"email"`
}

// TransferData is the subset of a transfer object used for payouts.
type TransferData struct {
	Reference    string   `json:"reference"`
	TransferCode string   `json:"transfer_code"`
	Status       string   `json:"status"`
	Amount       int64    `json:"amount"`
	Reason       string   `json:"reason"`
	Metadata     Metadata `json:"metadata"`
}

// Metadata holds caller-supplied ids. The gateway echoes metadata either as
// an object or as a JSON-encoded string, and ids may arrive as numbers.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	out := Metadata{}
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		*m = out
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*m = out
			return nil
		}
		b = []byte(inner)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// tidak fatal: metadata bukan object, abaikan
		*m = out
		return nil
	}
	for k, v := range raw {
		if s, ok := stringish(v); ok {
			out[k] = s
		}
	}
	*m = out
	return nil
}

// Get returns the first non-empty value among keys.
func (m Metadata) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func stringish(v json.RawMessage) (string, bool) {
	v = bytes.TrimSpace(v)
	switch {
	case len(v) == 0 || string(v) == "null":
		return "", false
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case v[0] == '{' || v[0] == '[':
		return "", false
	default:
		return strings.Trim(string(v), `"`), true
	}
}

// ParseEvent decodes an already verified body.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook: %w", err)
	}
	ev.Event = strings.TrimSpace(ev.Event)
	if ev.Event == "" {
		return Event{}, fmt.Errorf("decode webhook: missing event")
	}
	return ev, nil
}

func (e Event) Charge() (ChargeData, error) {
	var d ChargeData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return ChargeData{}, fmt.Errorf("decode charge: %w", err)
	}
	return d, nil
}

func (e Event) Transfer() (TransferData, error) {
	var d TransferData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return TransferData{}, fmt.Errorf("decode transfer: %w", err)
	}
	return d, nil
}
