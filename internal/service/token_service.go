package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/repo"
)

// TokenService is the only path to a user's token balance. Every change is a
// conditional balance update plus an audit row in one transaction, so the
// balance can never go negative and never drifts from the log.
type TokenService struct {
	ledger *repo.LedgerRepo
}

func NewTokenService(ledger *repo.LedgerRepo) *TokenService {
	return &TokenService{ledger: ledger}
}

// Balance returns the current balance, zero for unknown users.
func (s *TokenService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.ledger.Balance(ctx, userID)
}

// Debit charges n tokens for a metered operation. n <= 0 is a no-op reported
// as success. Returns false when the balance does not cover the charge; no
// audit row is written in that case.
func (s *TokenService) Debit(ctx context.Context, userID string, n int64, kind model.OperationKind, sessionID, messageID string, meta interface{}) (bool, error) {
	if n <= 0 {
		return true, nil
	}
	if !kind.Valid() {
		return false, fmt.Errorf("%w: unknown operation kind %q", errs.ErrInvalid, kind)
	}
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return false, err
	}
	entry := &model.UsageLogEntry{
		ID:        newID(),
		UserID:    userID,
		SessionID: sessionID,
		MessageID: messageID,
		Delta:     n,
		Kind:      kind,
		Meta:      metaJSON,
		Ctime:     time.Now().UnixMilli(),
	}
	return s.ledger.DebitWithLog(ctx, entry)
}

// Credit grants n tokens to a user, recorded as a negative-delta adjustment.
// Returns false when the user does not exist.
func (s *TokenService) Credit(ctx context.Context, userID string, n int64, adminID, reason string) (bool, error) {
	if n <= 0 {
		return false, fmt.Errorf("%w: grant amount must be positive", errs.ErrInvalid)
	}
	metaJSON, err := marshalMeta(&model.AdminAdjustment{AdminID: adminID, Reason: reason})
	if err != nil {
		return false, err
	}
	entry := &model.UsageLogEntry{
		ID:     newID(),
		UserID: userID,
		Delta:  -n,
		Kind:   model.OpAdminAdjustment,
		Meta:   metaJSON,
		Ctime:  time.Now().UnixMilli(),
	}
	return s.ledger.CreditWithLog(ctx, entry)
}

// History returns the user's audit entries, newest first.
func (s *TokenService) History(ctx context.Context, userID string, limit, offset int) ([]*model.UsageLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

// Totals aggregates per-user consumption and grants from the audit log.
func (s *TokenService) Totals(ctx context.Context) ([]*repo.UserUsage, error) {
	return s.ledger.UsageTotals(ctx)
}

func marshalMeta(meta interface{}) (json.RawMessage, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return data, nil
}
