package repo_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/testutil"
)

func seedUser(t *testing.T, db *sql.DB, tokens int64) *model.User {
	t.Helper()
	now := time.Now().UnixMilli()
	user := &model.User{
		ID:              fmt.Sprintf("user-%d", time.Now().UnixNano()),
		Email:           fmt.Sprintf("u%d@example.com", time.Now().UnixNano()),
		PasswordHash:    "x",
		FullName:        "Test User",
		Role:            model.RoleUser,
		TokensRemaining: tokens,
		Active:          true,
		Ctime:           now,
		Mtime:           now,
	}
	require.NoError(t, repo.NewUserRepo(db).Create(context.Background(), user))
	return user
}

func entry(userID string, delta int64, kind model.OperationKind) *model.UsageLogEntry {
	return &model.UsageLogEntry{
		ID:     fmt.Sprintf("log-%d", time.Now().UnixNano()),
		UserID: userID,
		Delta:  delta,
		Kind:   kind,
		Ctime:  time.Now().UnixMilli(),
	}
}

func TestLedgerDebitAndBalance(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)
	user := seedUser(t, db, 100)

	ok, err := ledger.DebitWithLog(context.Background(), entry(user.ID, 30, model.OpChat))
	require.NoError(t, err)
	require.True(t, ok)

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)

	entries, err := ledger.ListByUser(context.Background(), user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(30), entries[0].Delta)
	require.Equal(t, model.OpChat, entries[0].Kind)
}

func TestLedgerDebitInsufficientBalanceWritesNothing(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)
	user := seedUser(t, db, 10)

	ok, err := ledger.DebitWithLog(context.Background(), entry(user.ID, 11, model.OpChat))
	require.NoError(t, err)
	require.False(t, ok)

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance, "balance untouched")

	entries, err := ledger.ListByUser(context.Background(), user.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, entries, "failed debit leaves no audit row")
}

func TestLedgerCreditWithNegativeDelta(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)
	user := seedUser(t, db, 5)

	ok, err := ledger.CreditWithLog(context.Background(), entry(user.ID, -50, model.OpAdminAdjustment))
	require.NoError(t, err)
	require.True(t, ok)

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(55), balance)

	entries, err := ledger.ListByUser(context.Background(), user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(-50), entries[0].Delta)
}

func TestLedgerCreditUnknownUser(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)

	ok, err := ledger.CreditWithLog(context.Background(), entry("missing-user", -10, model.OpAdminAdjustment))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLedgerBalanceUnknownUserIsZero(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)

	balance, err := ledger.Balance(context.Background(), "missing-user")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

// Concurrent debits must never drive the balance negative; exactly as many
// succeed as the starting balance covers.
func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ledger := repo.NewLedgerRepo(db)
	user := seedUser(t, db, 10)

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e := entry(user.ID, 1, model.OpChat)
			e.ID = fmt.Sprintf("log-%s-%d", user.ID, n)
			ok, err := ledger.DebitWithLog(context.Background(), e)
			require.NoError(t, err)
			results <- ok
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}
	require.Equal(t, 10, succeeded)

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)

	entries, err := ledger.ListByUser(context.Background(), user.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, entries, 10, "one audit row per successful debit")
}
