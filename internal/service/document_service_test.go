package service_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/filestore"
	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/service"
	"github.com/abundance-ai/abundance/internal/testutil"
)

const docMaxUpload = 1024

func newDocumentFixture(t *testing.T, db *sql.DB) (*service.DocumentService, *service.TokenService) {
	t.Helper()
	store, err := filestore.NewStore("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	tokens := service.NewTokenService(repo.NewLedgerRepo(db))
	svc := service.NewDocumentService(repo.NewDocumentRepo(db), repo.NewEmbeddingCacheRepo(db),
		tokens, store, stubEmbedder{}, t.TempDir(), docMaxUpload, 1000)
	return svc, tokens
}

func TestUploadValidation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	svc, _ := newDocumentFixture(t, db)
	user := seedChatUser(t, db, 100)

	_, err := svc.Upload(context.Background(), user, "virus.exe", 10, strings.NewReader("x"))
	require.ErrorIs(t, err, errs.ErrUnsupportedFormat)

	_, err = svc.Upload(context.Background(), user, "big.txt", docMaxUpload+1, strings.NewReader("x"))
	require.ErrorIs(t, err, errs.ErrInvalid)

	_, err = svc.Upload(context.Background(), user, "empty.txt", 0, strings.NewReader(""))
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestUploadAndProcessLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	svc, tokens := newDocumentFixture(t, db)
	user := seedChatUser(t, db, 100)

	content := "some meaningful document body"
	doc, err := svc.Upload(context.Background(), user, "notes.txt", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, model.EmbedStatusPending, doc.EmbedStatus)
	require.Equal(t, "notes.txt", doc.OriginalFilename)
	require.Equal(t, "txt", doc.FileType)

	outcome, err := svc.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, service.ProcessOutcomeIndexed, outcome)

	processed, err := svc.Get(context.Background(), user, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbedStatusEmbedded, processed.EmbedStatus)
	require.Equal(t, 1, processed.ChunkCount)
	require.NotEmpty(t, processed.IndexPath)
	_, err = os.Stat(processed.IndexPath)
	require.NoError(t, err)

	// embedding charge: size/4, well under the cap
	balance, err := tokens.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 100-int64(len(content))/4, balance)

	// reprocessing an embedded document reports the short-circuit and changes nothing
	outcome, err = svc.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, service.ProcessOutcomeAlreadyProcessed, outcome)
	balanceAgain, err := tokens.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, balance, balanceAgain)

	outcome, err = svc.Process(context.Background(), "no-such-document")
	require.NoError(t, err)
	require.Equal(t, service.ProcessOutcomeMissing, outcome)
}

func TestProcessFailureAndRetry(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	svc, _ := newDocumentFixture(t, db)
	user := seedChatUser(t, db, 100)

	// valid extension, invalid payload: extraction fails
	doc, err := svc.Upload(context.Background(), user, "broken.pdf", 9, strings.NewReader("not a pdf"))
	require.NoError(t, err)

	outcome, err := svc.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, service.ProcessOutcomeFailed, outcome)
	failed, err := svc.Get(context.Background(), user, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbedStatusFailed, failed.EmbedStatus)
	require.NotEmpty(t, failed.EmbedError)

	require.NoError(t, svc.Trigger(context.Background(), user, doc.ID))
	rearmed, err := svc.Get(context.Background(), user, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbedStatusPending, rearmed.EmbedStatus)
	require.Empty(t, rearmed.EmbedError)
}

func TestDocumentOwnership(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	svc, _ := newDocumentFixture(t, db)
	owner := seedChatUser(t, db, 100)
	other := seedChatUser(t, db, 100)

	doc, err := svc.Upload(context.Background(), owner, "private.txt", 4, strings.NewReader("body"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), other, doc.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)

	err = svc.Delete(context.Background(), other, doc.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	admin := seedChatUser(t, db, 100)
	admin.Role = model.RoleAdmin
	got, err := svc.Get(context.Background(), admin, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)

	require.NoError(t, svc.Delete(context.Background(), owner, doc.ID))
	_, err = svc.Get(context.Background(), owner, doc.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// embedded documents cannot be re-triggered
	content := "another body"
	done, err := svc.Upload(context.Background(), owner, "done.txt", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	outcome, err := svc.Process(context.Background(), done.ID)
	require.NoError(t, err)
	require.Equal(t, service.ProcessOutcomeIndexed, outcome)
	err = svc.Trigger(context.Background(), owner, done.ID)
	require.ErrorIs(t, err, errs.ErrInvalid)
}
