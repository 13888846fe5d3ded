package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Outcome types recorded in the play log.
const (
	PrizeTypeInventory   = "inventory"
	PrizeTypeConsolation = "consolation"
	PrizeTypeScheduled   = "scheduled"
)

// Game state keys persisted in the key/value table.
const (
	StateLastAwardTime = "lastAwardTime"
	StateActivePlan    = "activePlan"
)

// DateFormat is the calendar-date layout used for all date columns,
// always rendered in the booth's configured zone.
const DateFormat = "2006-01-02"

// Prize is an immutable prize definition. TextureKey is the stable
// external identifier shared with settings and the client.
type Prize struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TextureKey  string       `gorm:"uniqueIndex;not null" json:"texture_key"`
	DisplayName string       `gorm:"not null" json:"display_name"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Prize) TableName() string { return "prizes" }

// DailyInventory is the per-(prize, date) quota row. The invariant
// 0 <= AwardedQuantity <= TotalQuantity holds at all times.
type DailyInventory struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PrizeID         snowflake.ID `gorm:"not null;uniqueIndex:idx_inventory_prize_date" json:"prize_id"`
	Date            string       `gorm:"not null;uniqueIndex:idx_inventory_prize_date" json:"date"`
	TotalQuantity   int          `gorm:"not null" json:"total_quantity"`
	AwardedQuantity int          `gorm:"not null;default:0" json:"awarded_quantity"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DailyInventory) TableName() string { return "daily_inventory" }

func (d DailyInventory) Remaining() int {
	return d.TotalQuantity - d.AwardedQuantity
}

// VoucherCode is a single-use redemption token. A code transitions
// unused -> used exactly once and stays linked to one play-log entry.
type VoucherCode struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	PrizeID   snowflake.ID  `gorm:"not null;index" json:"prize_id"`
	Code      string        `gorm:"uniqueIndex;not null" json:"code"`
	BatchID   string        `gorm:"not null;default:''" json:"batch_id"`
	IsUsed    bool          `gorm:"not null;default:false" json:"is_used"`
	UsedAt    *time.Time    `json:"used_at,omitempty"`
	PlayLogID *snowflake.ID `json:"play_log_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (VoucherCode) TableName() string { return "voucher_codes" }

// PlayLogEntry is the append-only system of record for every decision.
// Only PrintStatus is ever updated after insert.
type PlayLogEntry struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Timestamp          time.Time    `gorm:"not null" json:"timestamp"`
	Date               string       `gorm:"not null;index" json:"date"`
	PrizeType          string       `gorm:"not null" json:"prize_type"`
	PrizeID            string       `gorm:"not null" json:"prize_id"`
	DisplayName        string       `gorm:"not null" json:"display_name"`
	WinProbability     float64      `gorm:"not null" json:"win_probability"`
	InventoryRemaining *int         `json:"inventory_remaining,omitempty"`
	InventoryTotal     *int         `json:"inventory_total,omitempty"`
	PrintStatus        *string      `json:"print_status,omitempty"`
}

func (PlayLogEntry) TableName() string { return "play_log" }

// ScheduledPrize is a prize pinned to a specific datetime, awarded by
// the operator surface rather than the play-decision path.
type ScheduledPrize struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PrizeID   snowflake.ID `gorm:"not null;index" json:"prize_id"`
	Datetime  time.Time    `gorm:"not null" json:"datetime"`
	Date      string       `gorm:"not null;index" json:"date"`
	Awarded   bool         `gorm:"not null;default:false" json:"awarded"`
	AwardedAt *time.Time   `json:"awarded_at,omitempty"`
}

func (ScheduledPrize) TableName() string { return "scheduled_prizes" }

// GameState is the durable key/value blob for engine scalars that must
// survive restart.
type GameState struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GameState) TableName() string { return "game_state" }

// Models lists every table for migrations and test setup.
func Models() []any {
	return []any{
		&Prize{},
		&DailyInventory{},
		&VoucherCode{},
		&PlayLogEntry{},
		&ScheduledPrize{},
		&GameState{},
	}
}
