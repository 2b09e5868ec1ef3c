package offer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Offer mirrors one row of the offers table.
type Offer struct {
	ID            int64           `json:"id"`
	CandidateName string          `json:"candidate_name"`
	Email         string          `json:"email"`
	Position      string          `json:"position"`
	Salary        decimal.Decimal `json:"salary"`
	Token         string          `json:"-"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// View is what a candidate sees on the decision page before choosing.
type View struct {
	CandidateName string          `json:"candidate_name"`
	Position      string          `json:"position"`
	Salary        decimal.Decimal `json:"salary"`
	Status        Status          `json:"status"`
	Employer      string          `json:"employer,omitempty"`
}

// NewOffer is the row the engine asks the store to insert.
type NewOffer struct {
	CandidateName string
	Email         string
	Position      string
	Salary        decimal.Decimal
	Token         string
}

// Actor is the HR identity vouched for by the access gateway.
// The zero value is unauthenticated.
type Actor struct {
	Subject string
}

// Authorized reports whether the gateway resolved a real identity.
func (a Actor) Authorized() bool { return strings.TrimSpace(a.Subject) != "" }

// CreateInput carries the raw HR form values.
type CreateInput struct {
	CandidateName string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Position      string `json:"position" validate:"required"`
	Salary        string `json:"salary" validate:"required"`
}

// UnmarshalJSON accepts salary as a JSON string or a JSON number. Numbers
// keep their literal text so no precision is lost before decimal parsing.
func (in *CreateInput) UnmarshalJSON(b []byte) error {
	type plain CreateInput
	var aux struct {
		plain
		Salary json.RawMessage `json:"salary"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*in = CreateInput(aux.plain)

	raw := bytes.TrimSpace(aux.Salary)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		in.Salary = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &in.Salary); err != nil {
			return fmt.Errorf("salary: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("salary: must be a number or a string")
		}
		in.Salary = n.String()
	}
	return nil
}

// Created is returned by Engine.Create.
type Created struct {
	Offer              Offer
	NotificationQueued bool
}

// Result is returned by a successful Engine.Resolve.
type Result struct {
	Status Status `json:"status"`
}
