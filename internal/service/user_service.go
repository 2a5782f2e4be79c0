package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/pkg/password"
	"github.com/abundance-ai/abundance/internal/repo"
)

// UserService covers profile reads and the admin-only account operations.
type UserService struct {
	users  *repo.UserRepo
	tokens *TokenService
}

func NewUserService(users *repo.UserRepo, tokens *TokenService) *UserService {
	return &UserService{users: users, tokens: tokens}
}

func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*model.User, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// UpdateProfile lets a user change their display name and password; role and
// balance are never touched here.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, fullName, newPassword string) (*model.User, error) {
	update := map[string]interface{}{
		"mtime": time.Now().UnixMilli(),
	}
	if fullName != "" {
		update["full_name"] = strings.TrimSpace(fullName)
	}
	if newPassword != "" {
		if len(newPassword) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", errs.ErrInvalid)
		}
		hash, err := password.Hash(newPassword)
		if err != nil {
			return nil, err
		}
		update["password_hash"] = hash
	}
	if len(update) == 1 {
		return nil, fmt.Errorf("%w: nothing to update", errs.ErrInvalid)
	}
	if err := s.users.Update(ctx, userID, update); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// SetActive enables or disables an account. An admin cannot disable itself;
// that is the fastest way to lock everyone out.
func (s *UserService) SetActive(ctx context.Context, admin *model.User, userID string, active bool) (*model.User, error) {
	if admin.ID == userID && !active {
		return nil, fmt.Errorf("%w: cannot deactivate own account", errs.ErrInvalid)
	}
	update := map[string]interface{}{
		"active": active,
		"mtime":  time.Now().UnixMilli(),
	}
	if err := s.users.Update(ctx, userID, update); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// Delete removes an account. The ledger rows stay; usage history survives the
// user. An admin cannot delete itself.
func (s *UserService) Delete(ctx context.Context, admin *model.User, userID string) error {
	if admin.ID == userID {
		return fmt.Errorf("%w: cannot delete own account", errs.ErrInvalid)
	}
	return s.users.Delete(ctx, userID)
}

// GrantTokens credits a user's balance through the ledger.
func (s *UserService) GrantTokens(ctx context.Context, admin *model.User, userID string, amount int64, reason string) (*model.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	ok, err := s.tokens.Credit(ctx, userID, amount, admin.ID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s.users.GetByID(ctx, userID)
}
