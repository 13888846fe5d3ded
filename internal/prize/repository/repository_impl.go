package repository

import (
	"context"
	"errors"
	"time"

	"github.com/boothworks/prizebooth/internal/prize/domain"
	pkgdb "github.com/boothworks/prizebooth/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// ---- prizes ----

func (r *repo) CreatePrize(ctx context.Context, db *gorm.DB, prize *domain.Prize) error {
	return db.WithContext(ctx).Create(prize).Error
}

func (r *repo) FindPrizeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Prize, error) {
	var prize domain.Prize
	err := db.WithContext(ctx).First(&prize, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

func (r *repo) FindPrizeByTextureKey(ctx context.Context, db *gorm.DB, textureKey string) (*domain.Prize, error) {
	var prize domain.Prize
	err := db.WithContext(ctx).First(&prize, "texture_key = ?", textureKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

func (r *repo) ListPrizes(ctx context.Context, db *gorm.DB) ([]*domain.Prize, error) {
	var prizes []*domain.Prize
	err := db.WithContext(ctx).Order("created_at asc, id asc").Find(&prizes).Error
	if err != nil {
		return nil, err
	}
	return prizes, nil
}

// ---- daily inventory ----

func (r *repo) CreateDailyInventory(ctx context.Context, db *gorm.DB, inventory *domain.DailyInventory) error {
	return db.WithContext(ctx).Create(inventory).Error
}

func (r *repo) FindDailyInventory(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) (*domain.DailyInventory, error) {
	var inventory domain.DailyInventory
	err := db.WithContext(ctx).First(&inventory, "prize_id = ? AND date = ?", prizeID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inventory, nil
}

func (r *repo) RemainingInventory(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) (int, error) {
	inventory, err := r.FindDailyInventory(ctx, db, prizeID, date)
	if err != nil {
		return 0, err
	}
	if inventory == nil {
		return 0, nil
	}
	return inventory.Remaining(), nil
}

// IncrementAwarded refuses to move awarded past total; the guard in the
// WHERE clause is what keeps the inventory invariant under any caller.
func (r *repo) IncrementAwarded(ctx context.Context, db *gorm.DB, prizeID snowflake.ID, date string) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE daily_inventory
		 SET awarded_quantity = awarded_quantity + 1, updated_at = ?
		 WHERE prize_id = ? AND date = ? AND awarded_quantity < total_quantity`,
		time.Now().UTC(), prizeID, date,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInventoryExhausted
	}
	return nil
}

func (r *repo) AdjustTotalQuantity(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE daily_inventory
		 SET total_quantity = CASE WHEN ? < awarded_quantity THEN awarded_quantity ELSE ? END,
		     updated_at = ?
		 WHERE id = ?`,
		quantity, quantity, time.Now().UTC(), id,
	).Error
}

func (r *repo) ResetAwardedQuantities(ctx context.Context, db *gorm.DB, date string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE daily_inventory SET awarded_quantity = 0, updated_at = ? WHERE date = ?`,
		time.Now().UTC(), date,
	).Error
}

func (r *repo) ListDailyInventory(ctx context.Context, db *gorm.DB, date string) ([]*domain.DailyInventory, error) {
	var rows []*domain.DailyInventory
	err := db.WithContext(ctx).Where("date = ?", date).Order("id asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ---- voucher codes ----

func (r *repo) ImportVouchers(ctx context.Context, db *gorm.DB, vouchers []*domain.VoucherCode) (int, int, error) {
	imported, skipped := 0, 0
	for _, voucher := range vouchers {
		err := db.WithContext(ctx).Create(voucher).Error
		if err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				skipped++
				continue
			}
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// AvailableVoucher picks the oldest unused code; snowflake IDs are
// time-ordered so insertion order is preserved.
func (r *repo) AvailableVoucher(ctx context.Context, db *gorm.DB, prizeID snowflake.ID) (*domain.VoucherCode, error) {
	var voucher domain.VoucherCode
	err := db.WithContext(ctx).
		Where("prize_id = ? AND is_used = ?", prizeID, false).
		Order("id asc").
		First(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repo) MarkVoucherUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, playLogID snowflake.ID, usedAt time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE voucher_codes
		 SET is_used = ?, used_at = ?, play_log_id = ?
		 WHERE id = ? AND is_used = ?`,
		true, usedAt, playLogID, id, false,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrVoucherAlreadyUsed
	}
	return nil
}

func (r *repo) VoucherCounts(ctx context.Context, db *gorm.DB) ([]domain.VoucherCount, error) {
	var counts []domain.VoucherCount
	err := db.WithContext(ctx).Raw(
		`SELECT
		   p.id AS prize_id,
		   p.display_name AS prize_name,
		   COUNT(v.id) AS total,
		   COALESCE(SUM(CASE WHEN v.is_used THEN 1 ELSE 0 END), 0) AS used,
		   COALESCE(SUM(CASE WHEN v.is_used THEN 0 ELSE 1 END), 0) AS remaining
		 FROM prizes p
		 LEFT JOIN voucher_codes v ON v.prize_id = p.id
		 GROUP BY p.id, p.display_name
		 ORDER BY p.id`,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) DeleteUnusedVouchers(ctx context.Context, db *gorm.DB, prizeID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("prize_id = ? AND is_used = ?", prizeID, false).
		Delete(&domain.VoucherCode{})
	return result.RowsAffected, result.Error
}

// ---- play log ----

func (r *repo) AppendPlayLog(ctx context.Context, db *gorm.DB, entry *domain.PlayLogEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) UpdatePrintStatus(ctx context.Context, db *gorm.DB, playLogID snowflake.ID, status string) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE play_log SET print_status = ? WHERE id = ?`,
		status, playLogID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) PlayStats(ctx context.Context, db *gorm.DB, date string) (domain.PlayStats, error) {
	var stats domain.PlayStats
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COUNT(*) AS total_plays,
		   COALESCE(SUM(CASE WHEN prize_type = 'inventory' THEN 1 ELSE 0 END), 0) AS inventory_prizes,
		   COALESCE(SUM(CASE WHEN prize_type = 'consolation' THEN 1 ELSE 0 END), 0) AS consolation_prizes,
		   COALESCE(SUM(CASE WHEN prize_type = 'scheduled' THEN 1 ELSE 0 END), 0) AS scheduled_prizes
		 FROM play_log
		 WHERE date = ?`,
		date,
	).Scan(&stats).Error
	if err != nil {
		return domain.PlayStats{}, err
	}
	return stats, nil
}

func (r *repo) PlaysOnDate(ctx context.Context, db *gorm.DB, date, prizeType string) ([]*domain.PlayLogEntry, error) {
	stmt := db.WithContext(ctx).Where("date = ?", date)
	if prizeType != "" {
		stmt = stmt.Where("prize_type = ?", prizeType)
	}
	var entries []*domain.PlayLogEntry
	err := stmt.Order("timestamp desc, id desc").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ---- scheduled prizes ----

func (r *repo) CreateScheduledPrize(ctx context.Context, db *gorm.DB, scheduled *domain.ScheduledPrize) error {
	return db.WithContext(ctx).Create(scheduled).Error
}

func (r *repo) DueScheduledPrizes(ctx context.Context, db *gorm.DB, at time.Time) ([]*domain.ScheduledPrize, error) {
	var due []*domain.ScheduledPrize
	err := db.WithContext(ctx).
		Where("datetime <= ? AND awarded = ?", at, false).
		Order("datetime asc").
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repo) ListScheduledPrizes(ctx context.Context, db *gorm.DB, date string) ([]*domain.ScheduledPrize, error) {
	stmt := db.WithContext(ctx)
	if date != "" {
		stmt = stmt.Where("date = ?", date)
	}
	var rows []*domain.ScheduledPrize
	err := stmt.Order("datetime asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkScheduledAwarded(ctx context.Context, db *gorm.DB, id snowflake.ID, awardedAt time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE scheduled_prizes SET awarded = ?, awarded_at = ? WHERE id = ? AND awarded = ?`,
		true, awardedAt, id, false,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteScheduledPrize(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	result := db.WithContext(ctx).Delete(&domain.ScheduledPrize{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- game state ----

func (r *repo) GetState(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var state domain.GameState
	err := db.WithContext(ctx).First(&state, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return state.Value, nil
}

func (r *repo) SetState(ctx context.Context, db *gorm.DB, key, value string) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&domain.GameState{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

func (r *repo) DeleteState(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Delete(&domain.GameState{}, "key = ?", key).Error
}
