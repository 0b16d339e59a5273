// Package http serves the JSON API.
//
// This file implements utilities for parsing and validating request data:
// optional integer query values, list filters and JSON bodies.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// ParseOptionalInt returns nil when key is absent or blank, and an error
// when it is present but not an integer.
func ParseOptionalInt(query url.Values, key string) (*int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer, got %q", errBadRequest, key, v)
	}
	return &n, nil
}

// ParseBool reads an optional boolean query value. Blank is false.
func ParseBool(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", errBadRequest, key, v)
	}
	return b, nil
}

// ParseTransactionFilter builds a list filter from the query string.
func ParseTransactionFilter(query url.Values) (core.Filter, error) {
	var f core.Filter
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t, err := core.ParseType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if v := strings.TrimSpace(query.Get("status")); v != "" {
		s, err := core.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	f.Category = strings.TrimSpace(query.Get("category"))

	month, err := ParseOptionalInt(query, "month")
	if err != nil {
		return f, err
	}
	year, err := ParseOptionalInt(query, "year")
	if err != nil {
		return f, err
	}
	if month != nil {
		if *month < 1 || *month > 12 {
			return f, fmt.Errorf("%w: month %d", aggregate.ErrInvalidPeriod, *month)
		}
		f.Month = *month
	}
	if year != nil {
		f.Year = *year
	}
	return f, nil
}

// parseID reads the {id} route variable.
func parseID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// Amount accepts either integer cents (1520) or a decimal string in reais
// ("15.20" or "15,20").
type Amount struct {
	Cents int64
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		cents, err := core.ParseDecimalToCents(s)
		if err != nil {
			return err
		}
		a.Cents = cents
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	cents, err := n.Int64()
	if err != nil || cents < 0 {
		return core.ErrInvalidAmount
	}
	if cents > core.MaxAmountCents {
		return core.ErrAmountTooLarge
	}
	a.Cents = cents
	return nil
}

type createTransactionRequest struct {
	Description string  `json:"description"`
	Amount      *Amount `json:"amount"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	DueDate     string  `json:"dueDate"`
	Recurrence  string  `json:"recurrence"`
}

// toNewTransaction converts the body into validated domain input.
func (req createTransactionRequest) toNewTransaction() (core.NewTransaction, error) {
	if req.Amount == nil {
		return core.NewTransaction{}, core.ErrInvalidAmount
	}
	typ, err := core.ParseType(req.Type)
	if err != nil {
		return core.NewTransaction{}, err
	}
	due, err := core.ParseDueDate(req.DueDate)
	if err != nil {
		return core.NewTransaction{}, err
	}
	rec, err := core.ParseRecurrence(req.Recurrence)
	if err != nil {
		return core.NewTransaction{}, err
	}
	n := core.NewTransaction{
		Description: req.Description,
		Amount:      core.Money{Cents: req.Amount.Cents},
		Category:    req.Category,
		Type:        typ,
		DueDate:     due,
		Recurrence:  rec,
	}
	return n, n.Validate()
}

type updateTransactionRequest struct {
	Description *string `json:"description"`
	Amount      *Amount `json:"amount"`
	Category    *string `json:"category"`
	Type        *string `json:"type"`
	DueDate     *string `json:"dueDate"`
	Recurrence  *string `json:"recurrence"`
	Status      *string `json:"status"`
}

func (req updateTransactionRequest) toPatch() (core.TransactionPatch, error) {
	p := core.TransactionPatch{
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Amount != nil {
		p.Amount = &core.Money{Cents: req.Amount.Cents}
	}
	if req.Type != nil {
		t, err := core.ParseType(*req.Type)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	if req.DueDate != nil {
		d, err := core.ParseDueDate(*req.DueDate)
		if err != nil {
			return p, err
		}
		p.DueDate = &d
	}
	if req.Recurrence != nil {
		rec, err := core.ParseRecurrence(*req.Recurrence)
		if err != nil {
			return p, err
		}
		p.Recurrence = &rec
	}
	if req.Status != nil {
		s, err := core.ParseStatus(*req.Status)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	return p, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// transactionResponse is the wire shape of a transaction.
type transactionResponse struct {
	ID              int64       `json:"id"`
	Description     string      `json:"description"`
	Amount          int64       `json:"amount"`
	AmountFormatted string      `json:"amountFormatted"`
	Category        string      `json:"category"`
	Type            core.Type   `json:"type"`
	Status          core.Status `json:"status"`
	DueDate         string      `json:"dueDate"`
	PaidDate        *time.Time  `json:"paidDate,omitempty"`
	Recurrence      string      `json:"recurrence"`
	CreatedBy       int64       `json:"createdBy"`
	UpdatedBy       int64       `json:"updatedBy"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		Description:     t.Description,
		Amount:          t.Amount.Cents,
		AmountFormatted: t.Amount.String(),
		Category:        t.Category,
		Type:            t.Type,
		Status:          t.Status,
		DueDate:         t.DueDate.UTC().Format(time.RFC3339),
		PaidDate:        t.PaidDate,
		Recurrence:      string(t.Recurrence),
		CreatedBy:       t.CreatedBy,
		UpdatedBy:       t.UpdatedBy,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}
