package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/ai"
	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/pkg/tokencount"
	"github.com/abundance-ai/abundance/internal/rag"
	"github.com/abundance-ai/abundance/internal/repo"
)

const (
	defaultSystemPrompt = "You are a helpful assistant that answers questions using the user's own documents. " +
		"Base your answer on the provided context. If the context does not contain the answer, say so plainly."

	noContextNote = "No relevant information found in your documents."

	maxMessageLength = 8192
)

// ChatResult is what a completed exchange reports back to the caller.
type ChatResult struct {
	SessionID       string `json:"session_id"`
	MessageID       string `json:"message_id"`
	Response        string `json:"response"`
	TokensUsed      int64  `json:"tokens_used"`
	TokensRemaining int64  `json:"tokens_remaining"`
}

type ChatService struct {
	sessions  *repo.SessionRepo
	messages  *repo.MessageRepo
	docs      *repo.DocumentRepo
	tokens    *TokenService
	retriever *rag.Retriever
	generator ai.IGenerator
	timeout   time.Duration
}

func NewChatService(sessions *repo.SessionRepo, messages *repo.MessageRepo, docs *repo.DocumentRepo,
	tokens *TokenService, retriever *rag.Retriever, generator ai.IGenerator, timeout time.Duration) *ChatService {
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		docs:      docs,
		tokens:    tokens,
		retriever: retriever,
		generator: generator,
		timeout:   timeout,
	}
}

// SendMessage runs one grounded exchange: admission check, retrieval over the
// user's indexed documents, generation, persistence, then settlement against
// the ledger. Settlement happens after the message is stored; a balance that
// dipped below the charge in between is logged and the charge skipped rather
// than losing the answer.
func (s *ChatService) SendMessage(ctx context.Context, user *model.User, sessionID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrInvalid)
	}
	if len(message) > maxMessageLength {
		return nil, fmt.Errorf("%w: message too long", errs.ErrInvalid)
	}

	balance, err := s.tokens.Balance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, errs.ErrInsufficientTokens
	}

	session, err := s.resolveSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	snippets := s.retrieve(ctx, user.ID, message)
	ragUsed := len(snippets) > 0
	contextText := noContextNote
	if ragUsed {
		contextText = strings.Join(snippets, "\n\n")
	}

	prompt := fmt.Sprintf("%s\n\nContext: %s\n\nQuestion: %s", defaultSystemPrompt, contextText, message)
	response, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	messageTokens := tokencount.Estimate(message)
	contextTokens := tokencount.EstimateAll(snippets)
	responseTokens := tokencount.Estimate(response)
	total := messageTokens + contextTokens + responseTokens

	now := time.Now().UnixMilli()
	msg := &model.Message{
		ID:         newID(),
		UserID:     user.ID,
		SessionID:  session.ID,
		Request:    message,
		Response:   response,
		TokensUsed: total,
		Meta: model.MessageMeta{
			MessageTokens:  messageTokens,
			ContextTokens:  contextTokens,
			ResponseTokens: responseTokens,
			RAGUsed:        ragUsed,
			ContextCount:   len(snippets),
		},
		Ctime: now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		logutil.GetLogger(ctx).Warn("touch session failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	charged, err := s.tokens.Debit(ctx, user.ID, total, model.OpChat, session.ID, msg.ID, &model.ChatUsage{
		MessageTokens:  messageTokens,
		ContextTokens:  contextTokens,
		ResponseTokens: responseTokens,
		RAGUsed:        ragUsed,
		ContextCount:   len(snippets),
	})
	if err != nil {
		return nil, err
	}
	if !charged {
		logutil.GetLogger(ctx).Warn("chat charge exceeds remaining balance, message kept without charge",
			zap.String("user_id", user.ID), zap.String("message_id", msg.ID), zap.Int64("charge", total))
	}

	remaining, err := s.tokens.Balance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ChatResult{
		SessionID:       session.ID,
		MessageID:       msg.ID,
		Response:        response,
		TokensUsed:      total,
		TokensRemaining: remaining,
	}, nil
}

func (s *ChatService) resolveSession(ctx context.Context, user *model.User, sessionID string) (*model.ChatSession, error) {
	if sessionID != "" {
		return s.sessions.GetOwned(ctx, user.ID, sessionID)
	}
	title := "New Chat - " + time.Now().Format("2006-01-02 15:04")
	return s.CreateSession(ctx, user, title)
}

// retrieve is best effort: retrieval problems degrade the answer to an
// ungrounded one instead of failing the exchange.
func (s *ChatService) retrieve(ctx context.Context, userID, query string) []string {
	docs, err := s.docs.ListEmbeddedByUser(ctx, userID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("list embedded documents failed", zap.Error(err))
		return nil
	}
	snippets, err := s.retriever.Retrieve(ctx, docs, query)
	if err != nil {
		logutil.GetLogger(ctx).Warn("retrieval failed, answering without context", zap.Error(err))
		return nil
	}
	return snippets
}

func (s *ChatService) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	response, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", errs.ErrGenerationTimeout
		}
		return "", fmt.Errorf("%w: %v", errs.ErrGeneration, err)
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("%w: empty response", errs.ErrGeneration)
	}
	return response, nil
}

func (s *ChatService) CreateSession(ctx context.Context, user *model.User, title string) (*model.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Chat - " + time.Now().Format("2006-01-02 15:04")
	}
	now := time.Now().UnixMilli()
	session := &model.ChatSession{
		ID:     newID(),
		UserID: user.ID,
		Title:  title,
		Ctime:  now,
		Mtime:  now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*model.ChatSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessions.ListByUser(ctx, userID, limit, offset)
}

func (s *ChatService) GetSession(ctx context.Context, user *model.User, sessionID string) (*model.ChatSession, error) {
	return s.sessions.GetOwned(ctx, user.ID, sessionID)
}

// UpdateSession renames or archives a session the user owns.
func (s *ChatService) UpdateSession(ctx context.Context, user *model.User, sessionID string, title *string, archived *bool) (*model.ChatSession, error) {
	update := map[string]interface{}{
		"mtime": time.Now().UnixMilli(),
	}
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: title is empty", errs.ErrInvalid)
		}
		update["title"] = trimmed
	}
	if archived != nil {
		update["archived"] = *archived
	}
	if err := s.sessions.Update(ctx, user.ID, sessionID, update); err != nil {
		return nil, err
	}
	return s.sessions.GetOwned(ctx, user.ID, sessionID)
}

// DeleteSession removes the session and its messages. Ledger entries keep
// their session id; the audit trail outlives the conversation.
func (s *ChatService) DeleteSession(ctx context.Context, user *model.User, sessionID string) error {
	if _, err := s.sessions.GetOwned(ctx, user.ID, sessionID); err != nil {
		return err
	}
	if err := s.messages.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, user.ID, sessionID)
}

// History returns a session's messages newest-first, after an ownership check.
func (s *ChatService) History(ctx context.Context, user *model.User, sessionID string, limit, offset int) ([]*model.Message, error) {
	if _, err := s.sessions.GetOwned(ctx, user.ID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.ListBySession(ctx, sessionID, limit, offset)
}
