package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/audit"
	"bilancio/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio_test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	catID, err := repo.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Groceries"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	occurred := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	txID, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID:      "u1",
		CategoryID:  &catID,
		Description: "weekly shop",
		Amount:      core.Money{Minor: 4550},
		Direction:   core.Out,
		OccurredAt:  occurred,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if txID == 0 {
		t.Fatal("expected a non-zero transaction id")
	}

	txs, err := repo.Query(ctx, "u1", occurred.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	got := txs[0]
	if got.CategoryName != "Groceries" {
		t.Errorf("expected joined category name Groceries, got %q", got.CategoryName)
	}
	if got.Amount.Minor != 4550 || got.Direction != core.Out {
		t.Errorf("unexpected amount/direction: %+v", got)
	}
	if !got.OccurredAt.Equal(occurred) {
		t.Errorf("occurred_at changed across round trip: %v != %v", got.OccurredAt, occurred)
	}
}

func TestQueryExcludesSoftDeleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	occurred := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID:      "u1",
		Description: "cancelled order",
		Amount:      core.Money{Minor: 1000},
		Direction:   core.Out,
		OccurredAt:  occurred,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	deletedAt, err := repo.SoftDeleteTransaction(ctx, "u1", id)
	if err != nil {
		t.Fatalf("SoftDeleteTransaction: %v", err)
	}
	if !deletedAt.Equal(occurred) {
		t.Errorf("delete should report the row's occurred_at: got %v, want %v", deletedAt, occurred)
	}

	txs, err := repo.Query(ctx, "u1", occurred.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("soft-deleted transaction still visible: %+v", txs)
	}

	// A second delete of the same row reports not found.
	if _, err := repo.SoftDeleteTransaction(ctx, "u1", id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on repeated delete, got %v", err)
	}
}

func TestSoftDeleteEnforcesOwnership(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID:      "u1",
		Description: "rent",
		Amount:      core.Money{Minor: 90000},
		Direction:   core.Out,
		OccurredAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if _, err := repo.SoftDeleteTransaction(ctx, "someone-else", id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestListMonthBounds(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	insert := func(at time.Time) {
		t.Helper()
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			UserID:      "u1",
			Description: "entry",
			Amount:      core.Money{Minor: 100},
			Direction:   core.Out,
			OccurredAt:  at,
		})
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	insert(time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC))
	insert(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	insert(time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC))
	insert(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	txs, err := repo.ListMonth(ctx, "u1", 2026, 3)
	if err != nil {
		t.Fatalf("ListMonth: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions in March, got %d", len(txs))
	}
}

func TestCreateTransactionsBatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := []core.Transaction{
		{UserID: "u1", Description: "coffee", Amount: core.Money{Minor: 350}, Direction: core.Out, OccurredAt: base},
		{UserID: "u1", Description: "salary", Amount: core.Money{Minor: 300000}, Direction: core.In, OccurredAt: base.AddDate(0, 0, 1)},
	}

	n, err := repo.CreateTransactions(ctx, batch)
	if err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	// One invalid row rolls back the whole batch.
	bad := append(batch, core.Transaction{UserID: "u1", Description: "", Amount: core.Money{Minor: 1}, Direction: core.Out, OccurredAt: base})
	if _, err := repo.CreateTransactions(ctx, bad); err == nil {
		t.Fatal("expected batch with invalid row to fail")
	}
	txs, err := repo.Query(ctx, "u1", base.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("failed batch leaked rows: expected 2, got %d", len(txs))
	}
}

func TestListCategoriesOrderedByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, name := range []string{"Rent", "Groceries", "Transport"} {
		if _, err := repo.CreateCategory(ctx, core.Category{UserID: "u1", Name: name}); err != nil {
			t.Fatalf("CreateCategory %s: %v", name, err)
		}
	}
	if _, err := repo.CreateCategory(ctx, core.Category{UserID: "u2", Name: "Other"}); err != nil {
		t.Fatalf("CreateCategory for second user: %v", err)
	}

	cats, err := repo.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories for u1, got %d", len(cats))
	}
	for i := 1; i < len(cats); i++ {
		if cats[i].ID <= cats[i-1].ID {
			t.Errorf("categories not ordered by id: %+v", cats)
		}
	}
}

func TestDuplicateCategoryRejected(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Rent"}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Rent"}); err == nil {
		t.Error("expected unique constraint violation for duplicate category name")
	}
	// Same name for another user is fine.
	if _, err := repo.CreateCategory(ctx, core.Category{UserID: "u2", Name: "Rent"}); err != nil {
		t.Errorf("same name under another user should be allowed: %v", err)
	}
}

func TestRecurringRuleLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	activeID, err := repo.CreateRecurringRule(ctx, core.RecurringRule{
		UserID:      "u1",
		Description: "gym membership",
		Amount:      core.Money{Minor: 4000},
		Direction:   core.Out,
		StartDate:   now.AddDate(0, -2, 0),
		Every:       core.Monthly,
	})
	if err != nil {
		t.Fatalf("CreateRecurringRule: %v", err)
	}

	// Not yet started.
	if _, err := repo.CreateRecurringRule(ctx, core.RecurringRule{
		UserID:      "u1",
		Description: "future subscription",
		Amount:      core.Money{Minor: 999},
		Direction:   core.Out,
		StartDate:   now.AddDate(0, 1, 0),
		Every:       core.Monthly,
	}); err != nil {
		t.Fatalf("CreateRecurringRule: %v", err)
	}

	// Already ended.
	if _, err := repo.CreateRecurringRule(ctx, core.RecurringRule{
		UserID:      "u1",
		Description: "old lease",
		Amount:      core.Money{Minor: 80000},
		Direction:   core.Out,
		StartDate:   now.AddDate(-1, 0, 0),
		EndDate:     now.AddDate(0, -1, 0),
		Every:       core.Monthly,
	}); err != nil {
		t.Fatalf("CreateRecurringRule: %v", err)
	}

	rules, err := repo.ListActiveRules(ctx, now)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(rules))
	}
	if rules[0].ID != activeID {
		t.Errorf("wrong rule active: got id %d, want %d", rules[0].ID, activeID)
	}
	if !rules[0].LastExecutedAt.IsZero() {
		t.Errorf("fresh rule should have zero last execution, got %v", rules[0].LastExecutedAt)
	}

	if err := repo.UpdateRuleLastExecution(ctx, activeID, now); err != nil {
		t.Fatalf("UpdateRuleLastExecution: %v", err)
	}
	rules, err = repo.ListActiveRules(ctx, now)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if !rules[0].LastExecutedAt.Equal(now) {
		t.Errorf("last execution not persisted: %v", rules[0].LastExecutedAt)
	}

	if err := repo.UpdateRuleLastExecution(ctx, 99999, now); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown rule, got %v", err)
	}

	// The per-user listing includes inactive rules but not other users'.
	all, err := repo.ListRules(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rules for u1, got %d", len(all))
	}
	other, err := repo.ListRules(ctx, "u2")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no rules for u2, got %d", len(other))
	}
}

func TestAppendAndCountAudit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry := audit.NewEntry("u1", audit.KindBudgetProposal,
		"monthly income 3200.00", `[{"category_id":1}]`, 120, 45)
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	n, err := repo.CountAuditEntries(ctx, entry.PromptHash)
	if err != nil {
		t.Fatalf("CountAuditEntries: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 audit entries, got %d", n)
	}
}
