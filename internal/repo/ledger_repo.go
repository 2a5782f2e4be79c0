package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/dbutil"
)

// LedgerRepo owns every mutation of users.tokens_remaining. The balance column
// is a denormalized cache over usage_log; both are written in one transaction
// so they cannot drift.
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Balance(ctx context.Context, userID string) (int64, error) {
	const query = "SELECT tokens_remaining FROM users WHERE id = $1"
	var balance int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// DebitWithLog decrements the balance by entry.Delta only if the current
// balance covers it, and appends the audit row in the same transaction.
// Returns false without logging when the balance is short or the user is
// missing. entry.Delta must be positive.
func (r *LedgerRepo) DebitWithLog(ctx context.Context, entry *model.UsageLogEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	const debit = `
		UPDATE users
		SET tokens_remaining = tokens_remaining - $1, mtime = $2
		WHERE id = $3 AND tokens_remaining >= $1
	`
	result, err := tx.ExecContext(ctx, debit, entry.Delta, entry.Ctime, entry.UserID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if err := insertUsageLog(ctx, tx, entry); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// CreditWithLog increments the balance and appends the audit row (negative
// delta by convention) in one transaction. Returns false when the user does
// not exist. entry.Delta must be negative.
func (r *LedgerRepo) CreditWithLog(ctx context.Context, entry *model.UsageLogEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	const credit = `
		UPDATE users
		SET tokens_remaining = tokens_remaining + $1, mtime = $2
		WHERE id = $3
	`
	result, err := tx.ExecContext(ctx, credit, -entry.Delta, entry.Ctime, entry.UserID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if err := insertUsageLog(ctx, tx, entry); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func insertUsageLog(ctx context.Context, tx *sql.Tx, entry *model.UsageLogEntry) error {
	data := map[string]interface{}{
		"id":         entry.ID,
		"user_id":    entry.UserID,
		"session_id": entry.SessionID,
		"message_id": entry.MessageID,
		"delta":      entry.Delta,
		"kind":       string(entry.Kind),
		"meta":       []byte(entry.Meta),
		"ctime":      entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("usage_log", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = tx.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.UsageLogEntry, error) {
	const query = `
		SELECT id, user_id, session_id, message_id, delta, kind, meta, ctime
		FROM usage_log
		WHERE user_id = $1
		ORDER BY ctime DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var entries []*model.UsageLogEntry
	for rows.Next() {
		var entry model.UsageLogEntry
		var kind string
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.SessionID, &entry.MessageID,
			&entry.Delta, &kind, &meta, &entry.Ctime); err != nil {
			return nil, err
		}
		entry.Kind = model.OperationKind(kind)
		entry.Meta = meta
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// UserUsage is an aggregate over the audit log for one user.
type UserUsage struct {
	UserID   string `json:"user_id"`
	Consumed int64  `json:"consumed"`
	Granted  int64  `json:"granted"`
	Entries  int64  `json:"entries"`
}

// UsageTotals reports per-user consumption and grants. The audit log, not the
// balance column, is the source of truth here.
func (r *LedgerRepo) UsageTotals(ctx context.Context) ([]*UserUsage, error) {
	const query = `
		SELECT user_id,
		       COALESCE(SUM(CASE WHEN delta > 0 THEN delta ELSE 0 END), 0) AS consumed,
		       COALESCE(SUM(CASE WHEN delta < 0 THEN -delta ELSE 0 END), 0) AS granted,
		       COUNT(*) AS entries
		FROM usage_log
		GROUP BY user_id
		ORDER BY consumed DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var totals []*UserUsage
	for rows.Next() {
		var usage UserUsage
		if err := rows.Scan(&usage.UserID, &usage.Consumed, &usage.Granted, &usage.Entries); err != nil {
			return nil, err
		}
		totals = append(totals, &usage)
	}
	return totals, rows.Err()
}
