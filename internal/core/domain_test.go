package core

import (
	"testing"
	"time"
)

func TestMonthKeyUsesUTCCalendarMonth(t *testing.T) {
	// 2024-01-31 23:30 in UTC+2 is 21:30 UTC the same day; the bucket must
	// come from the UTC instant, not from the wall clock it was written with.
	loc := time.FixedZone("UTC+2", 2*60*60)
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 31, 23, 30, 0, 0, loc), "2024-01"},
		{time.Date(2024, 2, 1, 1, 30, 0, 0, loc), "2024-01"}, // 23:30 UTC Jan 31
		{time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), "2024-02"},
		{time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), "2023-12"},
	}
	for _, tc := range cases {
		if got := MonthKey(tc.in); got != tc.want {
			t.Errorf("MonthKey(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2024, 12)
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start: %v", start)
	}
	if !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end: %v", end)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		UserID:      "u1",
		Description: "groceries",
		Amount:      Money{Minor: 1200},
		Direction:   Out,
		OccurredAt:  time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"missing user", func(tx *Transaction) { tx.UserID = " " }, ErrEmptyUser},
		{"empty description", func(tx *Transaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Minor: -5} }, ErrInvalidAmount},
		{"bad direction", func(tx *Transaction) { tx.Direction = "sideways" }, ErrInvalidDirection},
		{"zero date", func(tx *Transaction) { tx.OccurredAt = time.Time{} }, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != tt.wantErr {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionDeleted(t *testing.T) {
	tx := Transaction{}
	if tx.Deleted() {
		t.Error("fresh transaction should not be deleted")
	}
	now := time.Now()
	tx.DeletedAt = &now
	if !tx.Deleted() {
		t.Error("transaction with deleted_at should be deleted")
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	valid := RecurringRule{
		UserID:      "u1",
		Description: "rent",
		Amount:      Money{Minor: 90000},
		Direction:   Out,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Every:       Monthly,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	bad := valid
	bad.EndDate = valid.StartDate.AddDate(0, -1, 0)
	if err := bad.Validate(); err == nil {
		t.Error("end date before start date should be rejected")
	}

	bad = valid
	bad.Every = "fortnightly"
	if err := bad.Validate(); err == nil {
		t.Error("unknown frequency should be rejected")
	}
}
