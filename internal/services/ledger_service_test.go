package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
)

type monthStore struct {
	fakeStore
	month []core.Transaction
}

func (m *monthStore) ListMonth(_ context.Context, _ string, _, _ int) ([]core.Transaction, error) {
	return m.month, nil
}

type failingMirror struct{ calls int }

func (f *failingMirror) WriteSummary(_ context.Context, _ string, _ core.MonthlySummary) (string, error) {
	f.calls++
	return "", errors.New("sheets down")
}

type recordingMirror struct{ months []string }

func (r *recordingMirror) WriteSummary(_ context.Context, _ string, s core.MonthlySummary) (string, error) {
	r.months = append(r.months, s.Month)
	return "", nil
}

// deleteStore returns a fixed occurred_at from soft deletes.
type deleteStore struct {
	monthStore
	deletedAt time.Time
}

func (d *deleteStore) SoftDeleteTransaction(_ context.Context, _ string, _ int64) (time.Time, error) {
	return d.deletedAt, nil
}

func TestMonthSummary(t *testing.T) {
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &monthStore{month: []core.Transaction{
		{Direction: core.In, Amount: core.Money{Minor: 300000}, OccurredAt: at},
		{Direction: core.Out, Amount: core.Money{Minor: 45000}, OccurredAt: at},
		{Direction: core.Out, Amount: core.Money{Minor: 5000}, OccurredAt: at},
	}}
	store.executed = map[int64]time.Time{}

	service := NewLedgerService(store, nil)
	summary, err := service.MonthSummary(context.Background(), "u1", 2026, 3)
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}

	if summary.Month != "2026-03" {
		t.Errorf("month = %q, want 2026-03", summary.Month)
	}
	if summary.IncomeMinor != 300000 || summary.ExpenseMinor != 50000 || summary.NetMinor != 250000 {
		t.Errorf("unexpected rollup: %+v", summary)
	}
}

func TestCreateTransactionMirrorFailureIsNonFatal(t *testing.T) {
	store := &monthStore{}
	store.executed = map[int64]time.Time{}
	mirror := &failingMirror{}
	service := NewLedgerService(store, mirror)

	id, err := service.CreateTransaction(context.Background(), core.Transaction{
		UserID:      "u1",
		Description: "coffee",
		Amount:      core.Money{Minor: 350},
		Direction:   core.Out,
		OccurredAt:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTransaction should succeed despite mirror failure: %v", err)
	}
	if id == 0 {
		t.Error("expected a transaction id")
	}
	if mirror.calls != 1 {
		t.Errorf("mirror calls = %d, want 1", mirror.calls)
	}
}

func TestSoftDeleteMirrorsTransactionMonth(t *testing.T) {
	// A January row deleted in June must refresh January's dashboard row.
	store := &deleteStore{deletedAt: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)}
	store.executed = map[int64]time.Time{}
	mirror := &recordingMirror{}
	service := NewLedgerService(store, mirror)

	if err := service.SoftDeleteTransaction(context.Background(), "u1", 7); err != nil {
		t.Fatalf("SoftDeleteTransaction: %v", err)
	}
	if len(mirror.months) != 1 || mirror.months[0] != "2026-01" {
		t.Errorf("mirrored months = %v, want [2026-01]", mirror.months)
	}
}
