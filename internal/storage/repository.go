// Package storage is the SQLite persistence layer. It implements the
// ledger's transaction source, the coach's category source, and the durable
// end of the audit pipeline.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/audit"
	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or belongs to another
// user.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Timestamps are persisted as RFC3339 UTC strings so scans are
// deterministic across drivers and timezones.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, description, amount_minor, direction, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.UserID, nullableID(tx.CategoryID), tx.Description, tx.Amount.Minor,
		string(tx.Direction), encodeTime(tx.OccurredAt))
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return id, nil
}

// CreateTransactions inserts a batch atomically; either every row lands or
// none does. Used by the CSV importer.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch insert: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (user_id, category_id, description, amount_minor, direction, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			tx.UserID, nullableID(tx.CategoryID), tx.Description, tx.Amount.Minor,
			string(tx.Direction), encodeTime(tx.OccurredAt)); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch insert: %w", err)
	}
	return len(txs), nil
}

// SoftDeleteTransaction marks the row deleted and returns its occurred_at
// so callers can refresh the month the row actually belonged to.
func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, userID string, id int64) (time.Time, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("soft delete transaction: %w", err)
	}
	defer dbTx.Rollback()

	var occurredAt string
	err = dbTx.QueryRowContext(ctx, `
		SELECT occurred_at FROM transactions
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, userID).Scan(&occurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("soft delete transaction: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		encodeTime(time.Now()), id, userID); err != nil {
		return time.Time{}, fmt.Errorf("soft delete transaction: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("soft delete transaction: %w", err)
	}

	at, err := decodeTime(occurredAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode occurred_at: %w", err)
	}
	return at, nil
}

// Query implements ledger.TransactionSource. Soft-deleted rows are filtered
// here, not in the aggregator.
func (r *SQLiteRepository) Query(ctx context.Context, userID string, since time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.category_id, COALESCE(c.name, ''), t.description,
		       t.amount_minor, t.direction, t.occurred_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.deleted_at IS NULL AND t.occurred_at >= ?
		ORDER BY t.occurred_at DESC, t.id DESC`,
		userID, encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListMonth returns the non-deleted transactions of one UTC calendar month,
// newest first.
func (r *SQLiteRepository) ListMonth(ctx context.Context, userID string, year, month int) ([]core.Transaction, error) {
	start, end := core.MonthBounds(year, month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.category_id, COALESCE(c.name, ''), t.description,
		       t.amount_minor, t.direction, t.occurred_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.deleted_at IS NULL
		  AND t.occurred_at >= ? AND t.occurred_at < ?
		ORDER BY t.occurred_at DESC, t.id DESC`,
		userID, encodeTime(start), encodeTime(end))
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			tx         core.Transaction
			categoryID sql.NullInt64
			direction  string
			occurredAt string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &categoryID, &tx.CategoryName,
			&tx.Description, &tx.Amount.Minor, &direction, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			tx.CategoryID = &id
		}
		tx.Direction = core.Direction(direction)
		at, err := decodeTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("decode occurred_at: %w", err)
		}
		tx.OccurredAt = at
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?)`, c.UserID, c.Name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}
	return id, nil
}

// ListCategories implements coach.CategorySource, ordered by id for
// deterministic prompts.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM categories WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- recurring rules ---

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	var endDate any
	if !rule.EndDate.IsZero() {
		endDate = encodeTime(rule.EndDate)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (user_id, category_id, description, amount_minor, direction, start_date, end_date, frequency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, nullableID(rule.CategoryID), rule.Description, rule.Amount.Minor,
		string(rule.Direction), encodeTime(rule.StartDate), endDate, string(rule.Every))
	if err != nil {
		return 0, fmt.Errorf("create recurring rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring rule id: %w", err)
	}
	return id, nil
}

// ListActiveRules returns every rule whose window contains now, across all
// users; the recurring worker walks them in one pass.
func (r *SQLiteRepository) ListActiveRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, description, amount_minor, direction,
		       start_date, end_date, frequency, last_executed_at
		FROM recurring_rules
		WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY id`,
		encodeTime(now), encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ListRules returns all of one user's rules, active or not, for the API.
func (r *SQLiteRepository) ListRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, description, amount_minor, direction,
		       start_date, end_date, frequency, last_executed_at
		FROM recurring_rules
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	var out []core.RecurringRule
	for rows.Next() {
		var (
			rule       core.RecurringRule
			categoryID sql.NullInt64
			direction  string
			startDate  string
			endDate    sql.NullString
			frequency  string
			lastExec   sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.UserID, &categoryID, &rule.Description,
			&rule.Amount.Minor, &direction, &startDate, &endDate, &frequency, &lastExec); err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			rule.CategoryID = &id
		}
		rule.Direction = core.Direction(direction)
		rule.Every = core.Frequency(frequency)
		start, err := decodeTime(startDate)
		if err != nil {
			return nil, fmt.Errorf("decode start_date: %w", err)
		}
		rule.StartDate = start
		if endDate.Valid {
			end, err := decodeTime(endDate.String)
			if err != nil {
				return nil, fmt.Errorf("decode end_date: %w", err)
			}
			rule.EndDate = end
		}
		if lastExec.Valid {
			last, err := decodeTime(lastExec.String)
			if err != nil {
				return nil, fmt.Errorf("decode last_executed_at: %w", err)
			}
			rule.LastExecutedAt = last
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateRuleLastExecution(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET last_executed_at = ? WHERE id = ?`, encodeTime(at), id)
	if err != nil {
		return fmt.Errorf("update rule execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule execution: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- audit log ---

// Append implements audit.Sink. Deployments without AMQP wire the
// repository directly as the proposal engine's sink; the audit worker uses
// the same method when draining the queue.
func (r *SQLiteRepository) Append(ctx context.Context, e audit.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, kind, prompt_hash, prompt_redacted, response_redacted, prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Kind, e.PromptHash, e.PromptRedacted, e.ResponseRedacted,
		e.PromptTokens, e.CompletionTokens, encodeTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// CountAuditEntries reports how many entries exist for a prompt hash. Used
// by tests and for dedup inspection.
func (r *SQLiteRepository) CountAuditEntries(ctx context.Context, promptHash string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE prompt_hash = ?`, promptHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
