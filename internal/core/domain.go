package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Type = "income"
	Expense Type = "expense"

	Open Status = "open"
	Paid Status = "paid"

	Unique  Recurrence = "Única"
	Monthly Recurrence = "Mensal"
	Weekly  Recurrence = "Semanal"
	Yearly  Recurrence = "Anual"
)

// WorkCategory is the default category of the dedicated work income series.
const WorkCategory = "Trabalho"

// MaxDescriptionLength bounds the free-text description.
const MaxDescriptionLength = 200

// MaxAmountCents bounds a single amount so that yearly int64 sums cannot
// overflow.
const MaxAmountCents int64 = 1_000_000_000_000_000

type (
	Type       string
	Status     string
	Recurrence string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          int64
		Description string
		Amount      Money
		Category    string
		Type        Type
		Status      Status
		DueDate     time.Time
		PaidDate    *time.Time // set only once Status is Paid
		Recurrence  Recurrence
		CreatedBy   int64
		UpdatedBy   int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// NewTransaction is the validated input for creating a transaction.
	NewTransaction struct {
		Description string
		Amount      Money
		Category    string
		Type        Type
		DueDate     time.Time
		Recurrence  Recurrence
	}

	// TransactionPatch carries optional field updates. Nil means unchanged.
	TransactionPatch struct {
		Description *string
		Amount      *Money
		Category    *string
		Type        *Type
		DueDate     *time.Time
		Recurrence  *Recurrence
		Status      *Status
	}

	// Filter selects transactions from a store. Zero values mean "any".
	Filter struct {
		Type     Type
		Status   Status
		Category string
		Month    int
		Year     int
	}
)

var (
	ErrNotFound                = errors.New("transaction not found")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAmountTooLarge          = fmt.Errorf("%w: exceeds %d cents", ErrInvalidAmount, MaxAmountCents)
	ErrEmptyDescription        = errors.New("empty description")
	ErrDescriptionTooLong      = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrEmptyCategory           = errors.New("empty category")
	ErrInvalidType             = errors.New("invalid type: must be income or expense")
	ErrInvalidStatus           = errors.New("invalid status: must be open or paid")
	ErrInvalidRecurrence       = errors.New("invalid recurrence")
	ErrInvalidDueDate          = errors.New("invalid due date")
	ErrInvalidStatusTransition = errors.New("invalid status transition: paid transactions cannot be reopened")
)

// SuggestedCategories is the fixed list offered at input time. Stores accept any category.
var SuggestedCategories = [...]string{
	"Alimentação",
	"Transporte",
	"Moradia",
	"Saúde",
	"Educação",
	"Lazer",
	"Trabalho",
	"Utilidades",
	"Outros",
	"Food",
	"Combustivel",
	"Beleza",
	"Bebidas",
}

func (t Type) Valid() bool {
	return t == Income || t == Expense
}

func (s Status) Valid() bool {
	return s == Open || s == Paid
}

func (r Recurrence) Valid() bool {
	switch r {
	case Unique, Monthly, Weekly, Yearly:
		return true
	default:
		return false
	}
}

// ParseType accepts "income"/"expense" case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// ParseStatus accepts "open"/"paid" case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParseRecurrence maps both the stored labels and the English tags
// (UNIQUE, MONTHLY, WEEKLY, YEARLY) to a Recurrence. Empty yields Unique.
func ParseRecurrence(s string) (Recurrence, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "":
		return Unique, nil
	case "UNIQUE":
		return Unique, nil
	case "MONTHLY":
		return Monthly, nil
	case "WEEKLY":
		return Weekly, nil
	case "YEARLY":
		return Yearly, nil
	}
	r := Recurrence(s)
	if !r.Valid() {
		return "", ErrInvalidRecurrence
	}
	return r, nil
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDueDate
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, s)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (n NewTransaction) Validate() error {
	if err := validateDescription(n.Description); err != nil {
		return err
	}
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if n.DueDate.IsZero() {
		return ErrInvalidDueDate
	}
	if n.Recurrence != "" && !n.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	return nil
}

// Build creates an open transaction attributed to userID.
func (n NewTransaction) Build(userID int64) (Transaction, error) {
	if err := n.Validate(); err != nil {
		return Transaction{}, err
	}
	rec := n.Recurrence
	if rec == "" {
		rec = Unique
	}
	return Transaction{
		Description: strings.TrimSpace(n.Description),
		Amount:      n.Amount,
		Category:    strings.TrimSpace(n.Category),
		Type:        n.Type,
		Status:      Open,
		DueDate:     n.DueDate,
		Recurrence:  rec,
		CreatedBy:   userID,
		UpdatedBy:   userID,
	}, nil
}

// IsPaid reports whether the transaction has been settled.
func (t Transaction) IsPaid() bool {
	return t.Status == Paid
}

// MarkPaid moves an open transaction to Paid and stamps PaidDate.
// A transaction that is already paid keeps its original PaidDate.
func (t *Transaction) MarkPaid(at time.Time, userID int64) {
	t.UpdatedBy = userID
	if t.Status == Paid && t.PaidDate != nil {
		return
	}
	paid := at
	t.Status = Paid
	t.PaidDate = &paid
}

// Apply validates and applies a patch. at is used as PaidDate when the
// patch marks the transaction paid.
func (t *Transaction) Apply(p TransactionPatch, at time.Time, userID int64) error {
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return ErrInvalidDueDate
	}
	if p.Recurrence != nil && !p.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return ErrInvalidStatus
		}
		if *p.Status == Open && t.Status == Paid {
			return ErrInvalidStatusTransition
		}
	}

	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Status != nil && *p.Status == Paid {
		t.MarkPaid(at, userID)
	}
	t.UpdatedBy = userID
	return nil
}

// DueWindow returns the inclusive dueDate range selected by the filter's
// month/year, following the store semantics: month+year selects that month,
// month alone selects that month of now's year, year alone the whole year.
// ok is false when the filter has no date restriction.
func (f Filter) DueWindow(now time.Time) (from, to time.Time, ok bool) {
	switch {
	case f.Month != 0:
		year := f.Year
		if year == 0 {
			year = now.Year()
		}
		from, to = MonthBounds(year, f.Month)
		return from, to, true
	case f.Year != 0:
		from = time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(f.Year, time.December, 31, 23, 59, 59, 0, time.UTC)
		return from, to, true
	}
	return time.Time{}, time.Time{}, false
}

// Matches reports whether t passes every restriction of the filter.
func (f Filter) Matches(t Transaction, now time.Time) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if c := strings.TrimSpace(f.Category); c != "" && t.Category != c {
		return false
	}
	if from, to, ok := f.DueWindow(now); ok && !Within(t.DueDate, from, to) {
		return false
	}
	return true
}

// MonthBounds returns the first instant and the last second (23:59:59) of a
// calendar month, in UTC.
func MonthBounds(year, month int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 0, time.UTC)
}

// Within compares the calendar components of d against an inclusive window.
func Within(d, from, to time.Time) bool {
	civil := time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), 0, time.UTC)
	return !civil.Before(from) && !civil.After(to)
}
