package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"github.com/kraalmart/kraalmart/internal/feeconfig/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc domain.Service
	db  *gorm.DB
	clk *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.FeeConfig{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clk:   clk,
		Cfg:   config.Config{FeeConfigCacheTTL: 60 * time.Second},
		Repo:  repository.Provide(),
	})

	return &fixture{svc: svc, db: db, clk: clk}
}

func validInput(label string) domain.CreateInput {
	return domain.CreateInput{
		Label:                  label,
		PlatformCommissionPct:  10,
		SellerPayoutFeePct:     2.5,
		BuyerProcessingFeePct:  1.5,
		EscrowFeeMinor:         2500,
		MinimumOrderValueMinor: 50000,
		MaximumOrderValueMinor: 50000000,
		CreatedBy:              "ops@example.com",
	}
}

func TestCreate_StartsAsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.svc.Create(ctx, validInput("standard"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, cfg.Status)
	assert.NotZero(t, cfg.ID)
	assert.Equal(t, f.clk.Now(), cfg.CreatedAt.UTC())

	// Drafts are not served as active.
	_, err = f.svc.GetActive(ctx)
	assert.ErrorIs(t, err, domain.ErrNoActiveConfig)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*domain.CreateInput)
		wantErr error
	}{
		{"empty label", func(in *domain.CreateInput) { in.Label = "  " }, domain.ErrInvalidLabel},
		{"commission above 100", func(in *domain.CreateInput) { in.PlatformCommissionPct = 101 }, domain.ErrInvalidPercentage},
		{"negative payout fee", func(in *domain.CreateInput) { in.SellerPayoutFeePct = -0.5 }, domain.ErrInvalidPercentage},
		{"negative escrow fee", func(in *domain.CreateInput) { in.EscrowFeeMinor = -1 }, domain.ErrInvalidEscrowFee},
		{"inverted bounds", func(in *domain.CreateInput) {
			in.MinimumOrderValueMinor = 100
			in.MaximumOrderValueMinor = 50
		}, domain.ErrInvalidBounds},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput("standard")
			tc.mutate(&in)
			_, err := f.svc.Create(ctx, in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestActivate_SingleActiveConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, validInput("v2"))
	require.NoError(t, err)

	activated, err := f.svc.Activate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, activated.Status)
	require.NotNil(t, activated.ActivatedAt)

	// Activating the second archives the first in the same transaction.
	_, err = f.svc.Activate(ctx, second.ID)
	require.NoError(t, err)

	prev, err := f.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, prev.Status)
	require.NotNil(t, prev.ArchivedAt)

	active, err := f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestActivate_ConcurrentLeavesOneActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const versions = 6
	ids := make([]snowflake.ID, 0, versions)
	for i := 0; i < versions; i++ {
		cfg, err := f.svc.Create(ctx, validInput(fmt.Sprintf("v%d", i+1)))
		require.NoError(t, err)
		ids = append(ids, cfg.ID)
	}

	// One connection keeps the in-memory database from returning busy
	// errors; the activation transaction still swaps atomically.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	var start, done sync.WaitGroup
	start.Add(1)
	errs := make(chan error, versions)
	for _, id := range ids {
		done.Add(1)
		go func(id snowflake.ID) {
			defer done.Done()
			start.Wait()
			_, err := f.svc.Activate(ctx, id)
			errs <- err
		}(id)
	}
	start.Done()
	done.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var activeCount int64
	require.NoError(t, f.db.Table("fee_configs").Where("status = ?", domain.StatusActive).Count(&activeCount).Error)
	assert.Equal(t, int64(1), activeCount)

	f.clk.Advance(61 * time.Second)
	active, err := f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, active.ID)
}

func TestActivate_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, cfg.ID)
	require.NoError(t, err)

	// A retried activation of the already-active config succeeds and
	// leaves it active.
	again, err := f.svc.Activate(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, again.Status)
}

func TestActivate_UnknownOrArchived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Activate(ctx, snowflake.ID(987654321))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v1, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)
	v2, err := f.svc.Create(ctx, validInput("v2"))
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, v1.ID)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, v2.ID)
	require.NoError(t, err)

	// Archived configs cannot come back; a new version must be created.
	_, err = f.svc.Activate(ctx, v1.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetActive_CacheExpiresWithTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, v1.ID)
	require.NoError(t, err)

	active, err := f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)

	// Flip the active config behind the cache's back.
	require.NoError(t, f.db.Exec(`UPDATE fee_configs SET status = 'archived' WHERE id = ?`, v1.ID).Error)
	v2, err := f.svc.Create(ctx, validInput("v2"))
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(`UPDATE fee_configs SET status = 'active' WHERE id = ?`, v2.ID).Error)

	// Within the TTL the cached config is still served.
	active, err = f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)

	// Past the TTL the next read hits the database.
	f.clk.Advance(61 * time.Second)
	active, err = f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)
}

func TestActivate_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, v1.ID)
	require.NoError(t, err)

	_, err = f.svc.GetActive(ctx)
	require.NoError(t, err)

	v2, err := f.svc.Create(ctx, validInput("v2"))
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, v2.ID)
	require.NoError(t, err)

	// No clock advance needed: activation drops the cached entry.
	active, err := f.svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetByID(context.Background(), snowflake.ID(42))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validInput("v1"))
	require.NoError(t, err)
	f.clk.Advance(time.Minute)
	v2, err := f.svc.Create(ctx, validInput("v2"))
	require.NoError(t, err)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, v2.ID, items[0].ID)
}
