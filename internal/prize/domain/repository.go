package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PlayStats is the per-date breakdown of decisions by outcome type.
type PlayStats struct {
	TotalPlays        int64 `json:"total_plays"`
	InventoryPrizes   int64 `json:"inventory_prizes"`
	ConsolationPrizes int64 `json:"consolation_prizes"`
	ScheduledPrizes   int64 `json:"scheduled_prizes"`
}

// VoucherCount summarizes voucher stock for one prize.
type VoucherCount struct {
	PrizeID   snowflake.ID `json:"prize_id"`
	PrizeName string       `json:"prize_name"`
	Total     int64        `json:"total"`
	Used      int64        `json:"used"`
	Remaining int64        `json:"remaining"`
}

// Repository is the transactional store contract. Every method takes the
// caller's *gorm.DB so reads and mutations compose into one transaction;
// InTransaction is the only place a transaction boundary is opened.
type Repository interface {
	InTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error

	CreatePrize(ctx context.Context, db *gorm.DB, prize *Prize) error
	FindPrizeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Prize, error)
	FindPrizeByTextureKey(ctx context.Context, db *gorm.DB, textureKey string) (*Prize, error)
	ListPrizes(ctx context.Context, db *gorm.DB) ([]*Prize, error)

	CreateDailyInventory(ctx context.Context, db *gorm.DB, inventory *DailyInventory) error
	FindDailyInventory(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) (*DailyInventory, error)
	RemainingInventory(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) (int, error)
	IncrementAwarded(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) error
	// AdjustTotalQuantity sets the total for a row, clamped in SQL so it
	// never drops below the already-awarded count.
	AdjustTotalQuantity(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int) error
	ResetAwardedQuantities(ctx context.Context, db *gorm.DB, date string) error
	ListDailyInventory(ctx context.Context, db *gorm.DB, date string) ([]*DailyInventory, error)

	ImportVouchers(ctx context.Context, db *gorm.DB, vouchers []*VoucherCode) (imported, skipped int, err error)
	AvailableVoucher(ctx context.Context, db *gorm.DB, prizeID snowflake.ID) (*VoucherCode, error)
	MarkVoucherUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, playLogID snowflake.ID, usedAt time.Time) error
	VoucherCounts(ctx context.Context, db *gorm.DB) ([]VoucherCount, error)
	DeleteUnusedVouchers(ctx context.Context, db *gorm.DB, prizeID snowflake.ID) (int64, error)

	AppendPlayLog(ctx context.Context, db *gorm.DB, entry *PlayLogEntry) error
	UpdatePrintStatus(ctx context.Context, db *gorm.DB, playLogID snowflake.ID, status string) error
	PlayStats(ctx context.Context, db *gorm.DB, date string) (PlayStats, error)
	PlaysOnDate(ctx context.Context, db *gorm.DB, date, prizeType string) ([]*PlayLogEntry, error)

	CreateScheduledPrize(ctx context.Context, db *gorm.DB, scheduled *ScheduledPrize) error
	DueScheduledPrizes(ctx context.Context, db *gorm.DB, at time.Time) ([]*ScheduledPrize, error)
	ListScheduledPrizes(ctx context.Context, db *gorm.DB, date string) ([]*ScheduledPrize, error)
	MarkScheduledAwarded(ctx context.Context, db *gorm.DB, id snowflake.ID, awardedAt time.Time) error
	DeleteScheduledPrize(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	GetState(ctx context.Context, db *gorm.DB, key string) (string, error)
	SetState(ctx context.Context, db *gorm.DB, key, value string) error
	DeleteState(ctx context.Context, db *gorm.DB, key string) error
}
