package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTextureKey    = errors.New("invalid_texture_key")
	ErrInvalidDisplayName   = errors.New("invalid_display_name")
	ErrInvalidDate          = errors.New("invalid_date")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrQuantityBelowAwarded = errors.New("quantity_below_awarded")
	ErrInvalidCodes         = errors.New("invalid_codes")
	ErrInvalidDatetime      = errors.New("invalid_datetime")
	ErrInvalidPrintStatus   = errors.New("invalid_print_status")
	ErrPrizeExists          = errors.New("prize_exists")
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrNotFound             = errors.New("not_found")

	// ErrInventoryExhausted reports an increment attempt against a row
	// whose awarded count already equals its total.
	ErrInventoryExhausted = errors.New("inventory_exhausted")
	// ErrVoucherAlreadyUsed reports a double-consumption attempt.
	ErrVoucherAlreadyUsed = errors.New("voucher_already_used")
)

type CreatePrizeRequest struct {
	TextureKey  string `json:"texture_key"`
	DisplayName string `json:"display_name"`
}

type AdjustInventoryRequest struct {
	TextureKey    string `json:"texture_key"`
	Date          string `json:"date"`
	TotalQuantity int    `json:"total_quantity"`
}

type ImportVouchersRequest struct {
	TextureKey string   `json:"texture_key"`
	Codes      []string `json:"codes"`
}

type ImportVouchersResponse struct {
	BatchID  string `json:"batch_id"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

type ScheduledPrizeRequest struct {
	TextureKey string `json:"texture_key"`
	Datetime   string `json:"datetime"`
}

// PrizeStats is the per-prize slice of the daily stats response.
type PrizeStats struct {
	ID               snowflake.ID `json:"id"`
	Name             string       `json:"name"`
	TextureKey       string       `json:"texture_key"`
	Awarded          int          `json:"awarded"`
	Total            int          `json:"total"`
	Remaining        int          `json:"remaining"`
	VouchersRemaining int64       `json:"vouchers_remaining"`
}

type DailyStats struct {
	Date           string         `json:"date"`
	PlayStats      PlayStats      `json:"play_stats"`
	Prizes         []PrizeStats   `json:"prizes"`
	TotalAwarded   int            `json:"total_awarded"`
	TotalInventory int            `json:"total_inventory"`
	TotalRemaining int            `json:"total_remaining"`
	VoucherCounts  []VoucherCount `json:"voucher_counts"`
	ActivePlan     string         `json:"active_plan"`
}

// Service is the administrative surface. Gameplay decisions live in the
// engine package; this service never touches the decision path.
type Service interface {
	CreatePrize(ctx context.Context, req CreatePrizeRequest) (Prize, error)
	ListPrizes(ctx context.Context) ([]*Prize, error)

	AdjustInventory(ctx context.Context, req AdjustInventoryRequest) (DailyInventory, error)
	ResetDay(ctx context.Context, date string) error

	ImportVouchers(ctx context.Context, req ImportVouchersRequest) (ImportVouchersResponse, error)
	VoucherCounts(ctx context.Context) ([]VoucherCount, error)
	DeleteUnusedVouchers(ctx context.Context, textureKey string) (int64, error)

	CreateScheduledPrize(ctx context.Context, req ScheduledPrizeRequest) (ScheduledPrize, error)
	ListScheduledPrizes(ctx context.Context, date string) ([]*ScheduledPrize, error)
	DeleteScheduledPrize(ctx context.Context, id snowflake.ID) error
	AwardDueScheduledPrize(ctx context.Context, now time.Time) (*PlayLogEntry, error)

	Stats(ctx context.Context, date string) (DailyStats, error)
	MarkPrinted(ctx context.Context, playLogID snowflake.ID, status string) error
}
