package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/rag"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/service"
	"github.com/abundance-ai/abundance/internal/testutil"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) ModelName() string {
	return "stub"
}

func newChatFixture(t *testing.T, db *sql.DB, gen *stubGenerator) *service.ChatService {
	t.Helper()
	sessions := repo.NewSessionRepo(db)
	messages := repo.NewMessageRepo(db)
	docs := repo.NewDocumentRepo(db)
	tokens := service.NewTokenService(repo.NewLedgerRepo(db))
	retriever := rag.NewRetriever(stubEmbedder{}, 2)
	return service.NewChatService(sessions, messages, docs, tokens, retriever, gen, time.Second*5)
}

func seedChatUser(t *testing.T, db *sql.DB, tokens int64) *model.User {
	t.Helper()
	now := time.Now().UnixMilli()
	user := &model.User{
		ID:              fmt.Sprintf("user-%d", time.Now().UnixNano()),
		Email:           fmt.Sprintf("chat%d@example.com", time.Now().UnixNano()),
		PasswordHash:    "x",
		FullName:        "Chat User",
		Role:            model.RoleUser,
		TokensRemaining: tokens,
		Active:          true,
		Ctime:           now,
		Mtime:           now,
	}
	require.NoError(t, repo.NewUserRepo(db).Create(context.Background(), user))
	return user
}

func TestSendMessageRejectsExhaustedBalanceBeforeGeneration(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "should not run"}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 0)

	_, err := chat.SendMessage(context.Background(), user, "", "Hello there")
	require.ErrorIs(t, err, errs.ErrInsufficientTokens)
	require.Equal(t, 0, gen.calls, "no model call for a broke user")
}

func TestSendMessageAccountingWithoutDocuments(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "Hi"}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 100)

	// "Hello there" = 3 accounting tokens, "Hi" = 2, no context
	result, err := chat.SendMessage(context.Background(), user, "", "Hello there")
	require.NoError(t, err)
	require.Equal(t, "Hi", result.Response)
	require.Equal(t, int64(5), result.TokensUsed)
	require.Equal(t, int64(95), result.TokensRemaining)
	require.NotEmpty(t, result.SessionID)
	require.NotEmpty(t, result.MessageID)

	session, err := chat.GetSession(context.Background(), user, result.SessionID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(session.Title, "New Chat - "))

	messages, err := chat.History(context.Background(), user, result.SessionID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "Hello there", messages[0].Request)
	require.Equal(t, int64(5), messages[0].TokensUsed)
	require.False(t, messages[0].Meta.RAGUsed)
	require.Equal(t, int64(3), messages[0].Meta.MessageTokens)
	require.Equal(t, int64(2), messages[0].Meta.ResponseTokens)
}

func TestSendMessageKeepsAnswerWhenChargeExceedsBalance(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "a long answer with many more words than the balance covers"}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 1)

	result, err := chat.SendMessage(context.Background(), user, "", "Hello there")
	require.NoError(t, err)
	require.NotEmpty(t, result.Response)
	require.Equal(t, int64(1), result.TokensRemaining, "balance untouched when charge cannot settle")

	messages, err := chat.History(context.Background(), user, result.SessionID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1, "answer persisted even without settlement")
}

func TestSendMessageSessionIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "Hi"}
	chat := newChatFixture(t, db, gen)
	owner := seedChatUser(t, db, 100)
	intruder := seedChatUser(t, db, 100)

	result, err := chat.SendMessage(context.Background(), owner, "", "Hello there")
	require.NoError(t, err)

	_, err = chat.SendMessage(context.Background(), intruder, result.SessionID, "Hello there")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = chat.History(context.Background(), intruder, result.SessionID, 10, 0)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSendMessageGenerationTimeout(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{err: context.DeadlineExceeded}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 100)

	_, err := chat.SendMessage(context.Background(), user, "", "Hello there")
	require.ErrorIs(t, err, errs.ErrGenerationTimeout)

	balance, err := service.NewTokenService(repo.NewLedgerRepo(db)).Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance, "failed generation costs nothing")
}

func TestSendMessageValidation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "Hi"}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 100)

	_, err := chat.SendMessage(context.Background(), user, "", "   ")
	require.ErrorIs(t, err, errs.ErrInvalid)

	_, err = chat.SendMessage(context.Background(), user, "", strings.Repeat("a", 9000))
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestSessionLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	gen := &stubGenerator{response: "Hi"}
	chat := newChatFixture(t, db, gen)
	user := seedChatUser(t, db, 100)

	session, err := chat.CreateSession(context.Background(), user, "Project questions")
	require.NoError(t, err)
	require.Equal(t, "Project questions", session.Title)

	newTitle := "Renamed"
	archived := true
	updated, err := chat.UpdateSession(context.Background(), user, session.ID, &newTitle, &archived)
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.True(t, updated.Archived)

	sessions, err := chat.ListSessions(context.Background(), user.ID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)

	require.NoError(t, chat.DeleteSession(context.Background(), user, session.ID))
	_, err = chat.GetSession(context.Background(), user, session.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
