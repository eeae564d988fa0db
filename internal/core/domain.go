package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status values as shown to users. The raw spreadsheet token for a settled
// invoice is PaidToken; every other value is open.
const (
	StatusPaid Status = "Paga"
	StatusOpen Status = "Em aberto"

	PaidToken = "LIQUIDADO"
)

type (
	Status string

	Invoice struct {
		ID      string
		Client  string
		Amount  decimal.Decimal
		DueDate time.Time
		Status  Status
		Source  string // file or range the row was read from
	}
)

var (
	ErrEmptyID       = errors.New("empty invoice id")
	ErrMissingDate   = errors.New("missing due date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Statuses returns every status in display order.
func Statuses() []Status {
	return []Status{StatusPaid, StatusOpen}
}

// StatusFromRaw maps a raw spreadsheet value to a Status.
func StatusFromRaw(raw string) Status {
	if strings.ToUpper(strings.TrimSpace(raw)) == PaidToken {
		return StatusPaid
	}
	return StatusOpen
}

// ParseStatus accepts a display label or a short code ("paid", "open").
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paga", "paid", "pagas":
		return StatusPaid, true
	case "em aberto", "open", "aberto", "unpaid":
		return StatusOpen, true
	}
	return "", false
}

func (s Status) String() string { return string(s) }

// Icon is the glyph used in the invoice table.
func (s Status) Icon() string {
	if s == StatusPaid {
		return "✅"
	}
	return "⚠️"
}

// Code is the lower-case identifier used by chart series and CSS classes.
func (s Status) Code() string {
	if s == StatusPaid {
		return "paid"
	}
	return "unpaid"
}

// Day truncates t to midnight UTC, keeping its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate creates a calendar date from year, month, day.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func (i Invoice) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyID
	}
	if i.DueDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}
