package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/dbutil"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
)

var sessionColumns = []string{"id", "user_id", "title", "archived", "ctime", "mtime"}

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, session *model.ChatSession) error {
	data := map[string]interface{}{
		"id":       session.ID,
		"user_id":  session.UserID,
		"title":    session.Title,
		"archived": session.Archived,
		"ctime":    session.Ctime,
		"mtime":    session.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_sessions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetOwned returns the session only when it belongs to userID; a session
// owned by someone else is indistinguishable from a missing one.
func (r *SessionRepo) GetOwned(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	where := map[string]interface{}{"id": sessionID, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("chat_sessions", where, sessionColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, errs.ErrNotFound
	}
	return scanSession(rows)
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.ChatSession, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "mtime desc",
		"_limit":   []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("chat_sessions", where, sessionColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var sessions []*model.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) Update(ctx context.Context, userID, sessionID string, update map[string]interface{}) error {
	if len(update) == 0 {
		return nil
	}
	where := map[string]interface{}{"id": sessionID, "user_id": userID}
	sqlStr, args, err := builder.BuildUpdate("chat_sessions", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, userID, sessionID string) error {
	where := map[string]interface{}{"id": sessionID, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("chat_sessions", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) Touch(ctx context.Context, sessionID string, mtime int64) error {
	const query = "UPDATE chat_sessions SET mtime = $1 WHERE id = $2"
	_, err := r.db.ExecContext(ctx, query, mtime, sessionID)
	return err
}

func scanSession(rows *sql.Rows) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.Archived,
		&session.Ctime, &session.Mtime); err != nil {
		return nil, err
	}
	return &session, nil
}
