package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// setupTestConn connects to DATABASE_URL inside a throwaway schema and runs
// the embedded migrations there.
func setupTestConn(t *testing.T) *Connection {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	config, err := pgxpool.ParseConfig(databaseURL)
	require.NoError(t, err)
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)

	conn := &Connection{pool: pool}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		conn.Close()
	})

	n, err := NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, len(GetMigrations()), n)
	return conn
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := setupTestConn(t)

	n, err := NewMigrator(conn).Migrate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	status, err := NewMigrator(conn).Status(context.Background())
	require.NoError(t, err)
	for _, m := range status {
		assert.True(t, m.IsApplied, m.Name)
	}
}

func TestRecordRepositoryTotals(t *testing.T) {
	conn := setupTestConn(t)
	repo := NewRecordRepository(conn)
	ctx := context.Background()

	end := timeutil.DateTime(2024, 5, 15, 23, 50, 0)
	for _, m := range []int{3, 2} {
		rec, err := study.NewStudyRecord("u1", study.SourceManual, end.Add(-time.Duration(m)*time.Minute), end, m)
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, rec))
	}
	other, err := study.NewStudyRecord("u2", study.SourceFocus, end.Add(-25*time.Minute), end, 25)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, other))

	week, err := repo.TotalForPeriod(ctx, "u1", study.CurrentKey(shared.PeriodWeek, end))
	require.NoError(t, err)
	assert.Equal(t, 5, week)

	all, err := repo.TotalAllTime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, all)

	top, err := repo.TopForPeriod(ctx, study.CurrentKey(shared.PeriodDay, end), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, shared.UserID("u2"), top[0].UserID)

	rows, err := repo.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, timeutil.ReferenceTZ, rows[0].EndTime.Location())
}

func TestProgressionRepositoryCredit(t *testing.T) {
	conn := setupTestConn(t)
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	repo := NewProgressionRepository(conn, clock)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	row, old, err := repo.Credit(ctx, "u1", 745)
	require.NoError(t, err)
	assert.Equal(t, 1, old)
	assert.Equal(t, 150, row.Level)

	require.NoError(t, repo.SetLevel(ctx, "u1", 3))
	n, err := repo.CountAboveLevel(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, repo.SetLevel(ctx, "nobody", 3), shared.ErrNotFound)
}

func TestInventoryRepositoryPurchaseAndEquip(t *testing.T) {
	conn := setupTestConn(t)
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	wallets := NewWalletRepository(conn, clock)
	inv := NewInventoryRepository(conn, clock)
	ctx := context.Background()

	_, err := wallets.Credit(ctx, "u1", 2500)
	require.NoError(t, err)

	king := economy.MustLookup(economy.ItemTitleKing)
	hard := economy.MustLookup(economy.ItemTitleHard)

	w, err := inv.Purchase(ctx, economy.NewInventoryItem("u1", king, clock.Now()), king.Price)
	require.NoError(t, err)
	assert.Equal(t, 1500, w.Balance)

	_, err = inv.Purchase(ctx, economy.NewInventoryItem("u1", king, clock.Now()), king.Price)
	assert.ErrorIs(t, err, shared.ErrAlreadyOwned)

	// The failed insert must not keep the debit.
	got, err := wallets.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1500, got.Balance)
	assert.Equal(t, 2500, got.TotalEarned)

	_, err = inv.Purchase(ctx, economy.NewInventoryItem("u1", hard, clock.Now()), hard.Price)
	require.NoError(t, err)

	_, err = inv.Purchase(ctx, economy.NewInventoryItem("u1", economy.MustLookup(economy.ItemRed), clock.Now()), 1000)
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemTitleKing, economy.CategoryTitle))
	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemTitleHard, economy.CategoryTitle))
	assert.ErrorIs(t, inv.Equip(ctx, "u1", economy.ItemBlue, economy.CategoryColor), shared.ErrNotOwned)

	items, err := inv.List(ctx, "u1")
	require.NoError(t, err)
	active := map[economy.ItemID]bool{}
	for _, it := range items {
		active[it.ItemID] = it.IsActive
	}
	assert.Equal(t, map[economy.ItemID]bool{economy.ItemTitleKing: false, economy.ItemTitleHard: true}, active)
}
