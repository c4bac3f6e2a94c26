package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

// Account is the record returned by signup.
type Account struct {
	ID        core.ID   `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type transactionBody struct {
	Amount   json.Number          `json:"amount"`
	Type     core.TransactionType `json:"type"`
	Category string               `json:"category"`
	Note     string               `json:"note"`
	Date     core.Date            `json:"date"`
}

// transactionPayload is the server's representation. Amount is decoded
// leniently so one corrupt record does not fail a whole listing.
type transactionPayload struct {
	ID       core.ID              `json:"id"`
	Amount   json.RawMessage      `json:"amount"`
	Type     core.TransactionType `json:"type"`
	Category string               `json:"category"`
	Note     string               `json:"note"`
	Date     json.RawMessage      `json:"date"`
}

type ackResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newTransactionBody(tx core.Transaction) transactionBody {
	return transactionBody{
		Amount:   json.Number(tx.Amount.Decimal().StringFixed(2)),
		Type:     tx.Type,
		Category: tx.Category,
		Note:     tx.Note,
		Date:     tx.Date,
	}
}

// toTransaction converts a payload. An amount or date that cannot be parsed
// is left zero, which validation and aggregation both treat as invalid; ok
// reports whether the record was clean.
func (p transactionPayload) toTransaction() (core.Transaction, bool) {
	amount, amountOK := parseAmount(p.Amount)
	var date core.Date
	dateOK := len(p.Date) > 0 && date.UnmarshalJSON(p.Date) == nil && !date.IsZero()
	return core.Transaction{
		ID:       p.ID,
		Amount:   amount,
		Type:     core.TransactionType(strings.ToUpper(string(p.Type))),
		Category: p.Category,
		Note:     p.Note,
		Date:     date,
	}, amountOK && dateOK
}

func parseAmount(raw json.RawMessage) (core.Money, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return core.Money{}, false
	}
	s := string(bytes.Trim(raw, `"`))
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, false
	}
	m, err := core.MoneyFromDecimal(d)
	if err != nil {
		return core.Money{}, false
	}
	return m, true
}
