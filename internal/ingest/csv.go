// Package ingest parses transaction CSV files into validated domain
// transactions ready for a batch insert.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"bilancio/internal/core"
)

// Header is the expected CSV header.
const Header = "date,description,amount,direction,category"

const (
	numFields    = 5
	dateFormat   = "2006-01-02"
	colDate      = 0
	colDesc      = 1
	colAmount    = 2
	colDirection = 3
	colCategory  = 4
)

// RowError reports one rejected row. Row numbers are 1-based and include
// the header.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// Result is the outcome of one import: transactions that parsed plus
// per-row errors for the rest. An import with errors still returns the
// good rows; the caller decides whether to insert them.
type Result struct {
	Transactions []core.Transaction
	Errors       []RowError
}

// CategoryResolver maps a category name to its id. Unknown names return
// ok=false; those rows land uncategorized.
type CategoryResolver func(name string) (int64, bool)

// Read parses a transaction CSV for one user. The first row must match
// Header exactly.
func Read(r io.Reader, userID string, resolve CategoryResolver) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("empty file")
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading header: %w", err)
	}
	if strings.Join(header, ",") != Header {
		return Result{}, fmt.Errorf("unexpected header %q, want %q", strings.Join(header, ","), Header)
	}

	var res Result
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Err: err.Error()})
			continue
		}

		tx, err := parseRow(rec, userID, resolve)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Err: err.Error()})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func parseRow(rec []string, userID string, resolve CategoryResolver) (core.Transaction, error) {
	occurredAt, err := time.ParseInLocation(dateFormat, strings.TrimSpace(rec[colDate]), time.UTC)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: want YYYY-MM-DD", rec[colDate])
	}

	minor, err := core.ParseDecimalToMinor(strings.TrimSpace(rec[colAmount]))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", rec[colAmount], err)
	}

	direction := core.Direction(strings.ToLower(strings.TrimSpace(rec[colDirection])))
	if direction != core.In && direction != core.Out {
		return core.Transaction{}, fmt.Errorf("direction %q: want in or out", rec[colDirection])
	}

	tx := core.Transaction{
		UserID:      userID,
		Description: strings.TrimSpace(rec[colDesc]),
		Amount:      core.Money{Minor: minor},
		Direction:   direction,
		OccurredAt:  occurredAt,
	}

	if name := strings.TrimSpace(rec[colCategory]); name != "" && resolve != nil {
		if id, ok := resolve(name); ok {
			tx.CategoryID = &id
		}
	}

	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
