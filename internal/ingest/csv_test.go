package ingest

import (
	"strings"
	"testing"
	"time"

	"bilancio/internal/core"
)

func resolver(m map[string]int64) CategoryResolver {
	return func(name string) (int64, bool) {
		id, ok := m[name]
		return id, ok
	}
}

func TestReadValidFile(t *testing.T) {
	input := strings.Join([]string{
		"date,description,amount,direction,category",
		"2026-03-01,monthly salary,3200.00,in,",
		"2026-03-02,weekly shop,45.50,out,Groceries",
		"2026-03-03,bus ticket,2.80,out,Unknown Category",
	}, "\n")

	res, err := Read(strings.NewReader(input), "u1", resolver(map[string]int64{"Groceries": 7}))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected row errors: %+v", res.Errors)
	}
	if len(res.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(res.Transactions))
	}

	salary := res.Transactions[0]
	if salary.Direction != core.In || salary.Amount.Minor != 320000 {
		t.Errorf("unexpected salary row: %+v", salary)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !salary.OccurredAt.Equal(want) {
		t.Errorf("occurred_at = %v, want %v", salary.OccurredAt, want)
	}

	shop := res.Transactions[1]
	if shop.CategoryID == nil || *shop.CategoryID != 7 {
		t.Errorf("category not resolved: %+v", shop)
	}

	// Unknown category names land uncategorized, not rejected.
	bus := res.Transactions[2]
	if bus.CategoryID != nil {
		t.Errorf("unknown category should stay nil, got %v", *bus.CategoryID)
	}
}

func TestReadReportsBadRows(t *testing.T) {
	input := strings.Join([]string{
		"date,description,amount,direction,category",
		"2026-03-01,ok row,10.00,out,",
		"03/01/2026,bad date,10.00,out,",
		"2026-03-02,bad amount,ten,out,",
		"2026-03-03,bad direction,10.00,sideways,",
		"2026-03-04,,10.00,out,",
	}, "\n")

	res, err := Read(strings.NewReader(input), "u1", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Errorf("expected 1 good transaction, got %d", len(res.Transactions))
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 row errors, got %d: %+v", len(res.Errors), res.Errors)
	}
	// Row numbers are 1-based including the header.
	if res.Errors[0].Row != 3 {
		t.Errorf("first error row = %d, want 3", res.Errors[0].Row)
	}
}

func TestReadRejectsWrongHeader(t *testing.T) {
	input := "when,what,how_much,direction,category\n2026-03-01,x,1.00,out,\n"
	if _, err := Read(strings.NewReader(input), "u1", nil); err == nil {
		t.Error("expected error for wrong header")
	}
}

func TestReadEmptyFile(t *testing.T) {
	if _, err := Read(strings.NewReader(""), "u1", nil); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestReadHeaderOnly(t *testing.T) {
	res, err := Read(strings.NewReader(Header+"\n"), "u1", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Transactions) != 0 || len(res.Errors) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
