package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/dbutil"
)

var messageColumns = []string{"id", "user_id", "session_id", "request", "response", "tokens_used", "meta", "ctime"}

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	meta, err := json.Marshal(msg.Meta)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":          msg.ID,
		"user_id":     msg.UserID,
		"session_id":  msg.SessionID,
		"request":     msg.Request,
		"response":    msg.Response,
		"tokens_used": msg.TokensUsed,
		"meta":        meta,
		"ctime":       msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListBySession returns messages newest-first.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*model.Message, error) {
	where := map[string]interface{}{
		"session_id": sessionID,
		"_orderby":   "ctime desc",
		"_limit":     []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, messageColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var messages []*model.Message
	for rows.Next() {
		var msg model.Message
		var meta []byte
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.SessionID, &msg.Request, &msg.Response,
			&msg.TokensUsed, &meta, &msg.Ctime); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &msg.Meta); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	where := map[string]interface{}{"session_id": sessionID}
	sqlStr, args, err := builder.BuildDelete("messages", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
