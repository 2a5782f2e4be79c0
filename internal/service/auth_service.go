package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/pkg/jwt"
	"github.com/abundance-ai/abundance/internal/pkg/password"
	"github.com/abundance-ai/abundance/internal/repo"
)

const minPasswordLength = 8

type AuthService struct {
	users         *repo.UserRepo
	jwtSecret     []byte
	jwtTTL        time.Duration
	defaultTokens int64
}

func NewAuthService(users *repo.UserRepo, jwtSecret string, jwtTTL time.Duration, defaultTokens int64) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     []byte(jwtSecret),
		jwtTTL:        jwtTTL,
		defaultTokens: defaultTokens,
	}
}

// Register creates a regular user with the configured starting balance.
func (s *AuthService) Register(ctx context.Context, email, plainPassword, fullName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", errs.ErrInvalid)
	}
	if len(plainPassword) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", errs.ErrInvalid, minPasswordLength)
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	user := &model.User{
		ID:              newID(),
		Email:           email,
		PasswordHash:    hash,
		FullName:        strings.TrimSpace(fullName),
		Role:            model.RoleUser,
		TokensRemaining: s.defaultTokens,
		Active:          true,
		Ctime:           now,
		Mtime:           now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errs.IsConflict(err) {
			return nil, fmt.Errorf("%w: email already registered", errs.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a signed token. Credential failures
// and unknown emails return the same error so callers cannot probe accounts.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errs.IsNotFound(err) {
			return "", nil, fmt.Errorf("%w: bad credentials", errs.ErrUnauthorized)
		}
		return "", nil, err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return "", nil, fmt.Errorf("%w: bad credentials", errs.ErrUnauthorized)
	}
	if !user.Active {
		return "", nil, fmt.Errorf("%w: account disabled", errs.ErrForbidden)
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, string(user.Role), s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// EnsureAdmin creates the bootstrap admin account on first start. An existing
// account with that email is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, plainPassword string) error {
	if email == "" || plainPassword == "" {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errs.IsNotFound(err) {
		return err
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	admin := &model.User{
		ID:              newID(),
		Email:           email,
		PasswordHash:    hash,
		FullName:        "Administrator",
		Role:            model.RoleAdmin,
		TokensRemaining: s.defaultTokens * 100,
		Active:          true,
		Ctime:           now,
		Mtime:           now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errs.IsConflict(err) {
			return nil
		}
		return err
	}
	logutil.GetLogger(ctx).Info("created bootstrap admin account", zap.String("email", email))
	return nil
}
