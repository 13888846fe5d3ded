package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/boothworks/prizebooth/internal/prize/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB, domain.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewStaticSettingsHolder(config.DefaultSettings())
	require.NoError(t, err)

	repo := repository.Provide()
	svc := New(Params{
		DB:       db,
		Repo:     repo,
		Settings: holder,
		Clock:    clock.NewSystemClock(),
		GenID:    node,
		Log:      zap.NewNop(),
	})
	return svc, db, repo
}

func TestCreatePrizeValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "", DisplayName: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidTextureKey)

	_, err = svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidDisplayName)

	prize, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)
	assert.Equal(t, "plush", prize.TextureKey)

	_, err = svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Again"})
	assert.ErrorIs(t, err, domain.ErrPrizeExists)
}

func TestAdjustInventoryRejectsBelowAwarded(t *testing.T) {
	svc, db, repo := setupService(t)
	ctx := context.Background()

	prize, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)

	inventory, err := svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{
		TextureKey:    "plush",
		Date:          "2026-06-15",
		TotalQuantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, inventory.TotalQuantity)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementAwarded(ctx, db, prize.ID, "2026-06-15"))
	}

	_, err = svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{
		TextureKey:    "plush",
		Date:          "2026-06-15",
		TotalQuantity: 2,
	})
	assert.ErrorIs(t, err, domain.ErrQuantityBelowAwarded)

	updated, err := svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{
		TextureKey:    "plush",
		Date:          "2026-06-15",
		TotalQuantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalQuantity)
	assert.Equal(t, 3, updated.AwardedQuantity)
}

func TestAdjustInventoryValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{TextureKey: "x", Date: "2026-06-15", TotalQuantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{TextureKey: "x", Date: "15.06.2026", TotalQuantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{TextureKey: "missing", Date: "2026-06-15", TotalQuantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportVouchersBatch(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)

	_, err = svc.ImportVouchers(ctx, domain.ImportVouchersRequest{TextureKey: "plush"})
	assert.ErrorIs(t, err, domain.ErrInvalidCodes)

	resp, err := svc.ImportVouchers(ctx, domain.ImportVouchersRequest{
		TextureKey: "plush",
		Codes:      []string{"A1", "B2", "  ", "C3"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 3, resp.Imported)
	assert.Zero(t, resp.Skipped)

	// Re-importing the same file is safe.
	again, err := svc.ImportVouchers(ctx, domain.ImportVouchersRequest{
		TextureKey: "plush",
		Codes:      []string{"A1", "D4"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Imported)
	assert.Equal(t, 1, again.Skipped)
	assert.NotEqual(t, resp.BatchID, again.BatchID)

	counts, err := svc.VoucherCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, int64(4), counts[0].Total)
	assert.Equal(t, int64(4), counts[0].Remaining)
}

func TestDeleteUnusedVouchers(t *testing.T) {
	svc, db, repo := setupService(t)
	ctx := context.Background()

	_, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)
	_, err = svc.ImportVouchers(ctx, domain.ImportVouchersRequest{TextureKey: "plush", Codes: []string{"A1", "B2"}})
	require.NoError(t, err)

	prize, err := repo.FindPrizeByTextureKey(ctx, db, "plush")
	require.NoError(t, err)
	voucher, err := repo.AvailableVoucher(ctx, db, prize.ID)
	require.NoError(t, err)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	require.NoError(t, repo.MarkVoucherUsed(ctx, db, voucher.ID, node.Generate(), time.Now().UTC()))

	deleted, err := svc.DeleteUnusedVouchers(ctx, "plush")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "used codes stay for the audit trail")
}

func TestScheduledPrizeLifecycle(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)

	_, err = svc.CreateScheduledPrize(ctx, domain.ScheduledPrizeRequest{TextureKey: "plush", Datetime: "whenever"})
	assert.ErrorIs(t, err, domain.ErrInvalidDatetime)

	scheduled, err := svc.CreateScheduledPrize(ctx, domain.ScheduledPrizeRequest{
		TextureKey: "plush",
		Datetime:   "2026-06-15T14:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-06-15", scheduled.Date)

	listed, err := svc.ListScheduledPrizes(ctx, "2026-06-15")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Before the scheduled moment nothing is due.
	early, err := svc.AwardDueScheduledPrize(ctx, scheduled.Datetime.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, early)

	entry, err := svc.AwardDueScheduledPrize(ctx, scheduled.Datetime.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.PrizeTypeScheduled, entry.PrizeType)
	assert.Equal(t, "Plush Toy", entry.DisplayName)

	// Awarding is one-shot.
	repeat, err := svc.AwardDueScheduledPrize(ctx, scheduled.Datetime.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, repeat)
}

func TestStatsAggregates(t *testing.T) {
	svc, db, repo := setupService(t)
	ctx := context.Background()

	prize, err := svc.CreatePrize(ctx, domain.CreatePrizeRequest{TextureKey: "plush", DisplayName: "Plush Toy"})
	require.NoError(t, err)
	_, err = svc.AdjustInventory(ctx, domain.AdjustInventoryRequest{TextureKey: "plush", Date: "2026-06-15", TotalQuantity: 5})
	require.NoError(t, err)
	_, err = svc.ImportVouchers(ctx, domain.ImportVouchersRequest{TextureKey: "plush", Codes: []string{"A1", "B2"}})
	require.NoError(t, err)

	require.NoError(t, repo.IncrementAwarded(ctx, db, prize.ID, "2026-06-15"))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	require.NoError(t, repo.AppendPlayLog(ctx, db, &domain.PlayLogEntry{
		ID:          node.Generate(),
		Timestamp:   time.Now().UTC(),
		Date:        "2026-06-15",
		PrizeType:   domain.PrizeTypeInventory,
		PrizeID:     "inventory-1",
		DisplayName: "Plush Toy",
	}))

	_, err = svc.Stats(ctx, "not-a-date")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	stats, err := svc.Stats(ctx, "2026-06-15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PlayStats.TotalPlays)
	require.Len(t, stats.Prizes, 1)
	assert.Equal(t, 1, stats.Prizes[0].Awarded)
	assert.Equal(t, 5, stats.Prizes[0].Total)
	assert.Equal(t, 4, stats.Prizes[0].Remaining)
	assert.Equal(t, int64(2), stats.Prizes[0].VouchersRemaining)
	assert.Equal(t, 1, stats.TotalAwarded)
	assert.Equal(t, 4, stats.TotalRemaining)
}

func TestMarkPrintedValidatesStatus(t *testing.T) {
	svc, db, repo := setupService(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	entry := &domain.PlayLogEntry{
		ID:          node.Generate(),
		Timestamp:   time.Now().UTC(),
		Date:        "2026-06-15",
		PrizeType:   domain.PrizeTypeConsolation,
		PrizeID:     "consolation",
		DisplayName: "No prize",
	}
	require.NoError(t, repo.AppendPlayLog(ctx, db, entry))

	assert.ErrorIs(t, svc.MarkPrinted(ctx, entry.ID, "torn"), domain.ErrInvalidPrintStatus)
	require.NoError(t, svc.MarkPrinted(ctx, entry.ID, "printed"))

	var stored domain.PlayLogEntry
	require.NoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	require.NotNil(t, stored.PrintStatus)
	assert.Equal(t, "printed", *stored.PrintStatus)

	assert.ErrorIs(t, svc.MarkPrinted(ctx, node.Generate(), "printed"), domain.ErrNotFound)
}
