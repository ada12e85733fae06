package core

import (
	"errors"
	"strings"
	"time"
)

const (
	In  Direction = "in"
	Out Direction = "out"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Weekly  Frequency = "weekly"
	Daily   Frequency = "daily"
)

// Uncategorized is the sentinel bucket for outgoing transactions that carry
// no category.
const (
	UncategorizedID   int64 = 0
	UncategorizedName       = "Uncategorized"
)

type (
	// Direction tells whether money entered ("in") or left ("out") the ledger.
	Direction string

	// Frequency is the repetition schedule of a recurring rule.
	Frequency string

	Money struct {
		Minor int64 // smallest currency unit (cents)
	}

	Transaction struct {
		ID     int64
		UserID string
		// CategoryID is nil for uncategorized transactions. CategoryName is
		// denormalized by the storage layer for aggregation and prompts.
		CategoryID   *int64
		CategoryName string
		Description  string
		Amount       Money
		Direction    Direction
		OccurredAt   time.Time
		DeletedAt    *time.Time
	}

	Category struct {
		ID     int64
		UserID string
		Name   string
	}

	// RecurringRule is a template transaction materialized on a schedule.
	RecurringRule struct {
		ID             int64
		UserID         string
		CategoryID     *int64
		Description    string
		Amount         Money
		Direction      Direction
		StartDate      time.Time
		EndDate        time.Time // zero means open-ended
		Every          Frequency
		LastExecutedAt time.Time // zero means never executed
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyUser        = errors.New("empty user id")
	ErrEmptyName        = errors.New("empty name")
)

// MonthKey returns the YYYY-MM bucket of t. Buckets are formed on the UTC
// calendar month of the stored instant so grouping is deterministic and
// independent of server timezone.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthKeyOf builds the YYYY-MM key for an explicit year and month.
func MonthKeyOf(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// MonthBounds returns the UTC start (inclusive) and end (exclusive) of a
// calendar month.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func (d Direction) Validate() error {
	switch d {
	case In, Out:
		return nil
	}
	return ErrInvalidDirection
}

func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Direction.Validate(); err != nil {
		return err
	}
	if t.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Deleted reports whether the transaction is soft-deleted. Deleted rows are
// excluded from every aggregation.
func (t Transaction) Deleted() bool {
	return t.DeletedAt != nil && !t.DeletedAt.IsZero()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUser
	}
	if r.StartDate.IsZero() {
		return errors.New("invalid start date: " + ErrInvalidDate.Error())
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return errors.New("end date must be after start date")
	}
	switch r.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return errors.New("invalid frequency")
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return r.Direction.Validate()
}
