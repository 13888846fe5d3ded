// Package service implements the administrative surface: prize
// definitions, inventory adjustments, voucher stock, scheduled prizes
// and daily stats. The play-decision path never goes through here.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Repo     domain.Repository
	Settings *config.SettingsHolder
	Clock    clock.Clock
	GenID    *snowflake.Node
	Log      *zap.Logger
}

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	settings *config.SettingsHolder
	clock    clock.Clock
	genID    *snowflake.Node
	log      *zap.Logger
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		repo:     p.Repo,
		settings: p.Settings,
		clock:    p.Clock,
		genID:    p.GenID,
		log:      p.Log.Named("prize_service"),
	}
}

func (s *service) CreatePrize(ctx context.Context, req domain.CreatePrizeRequest) (domain.Prize, error) {
	textureKey := strings.TrimSpace(req.TextureKey)
	if textureKey == "" {
		return domain.Prize{}, domain.ErrInvalidTextureKey
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return domain.Prize{}, domain.ErrInvalidDisplayName
	}

	existing, err := s.repo.FindPrizeByTextureKey(ctx, s.db, textureKey)
	if err != nil {
		return domain.Prize{}, err
	}
	if existing != nil {
		return domain.Prize{}, domain.ErrPrizeExists
	}

	prize := domain.Prize{
		ID:          s.genID.Generate(),
		TextureKey:  textureKey,
		DisplayName: strings.TrimSpace(req.DisplayName),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreatePrize(ctx, s.db, &prize); err != nil {
		return domain.Prize{}, err
	}

	s.log.Info("prize created", zap.String("texture_key", textureKey))
	return prize, nil
}

func (s *service) ListPrizes(ctx context.Context) ([]*domain.Prize, error) {
	return s.repo.ListPrizes(ctx, s.db)
}

// AdjustInventory sets the total quota for a (prize, date) pair. Totals
// below the already-awarded count are rejected up front so the caller
// gets a clear error instead of a silent clamp.
func (s *service) AdjustInventory(ctx context.Context, req domain.AdjustInventoryRequest) (domain.DailyInventory, error) {
	if req.TotalQuantity < 0 {
		return domain.DailyInventory{}, domain.ErrInvalidQuantity
	}
	if _, err := time.Parse(domain.DateFormat, req.Date); err != nil {
		return domain.DailyInventory{}, domain.ErrInvalidDate
	}

	prize, err := s.findPrize(ctx, req.TextureKey)
	if err != nil {
		return domain.DailyInventory{}, err
	}

	existing, err := s.repo.FindDailyInventory(ctx, s.db, prize.ID, req.Date)
	if err != nil {
		return domain.DailyInventory{}, err
	}

	if existing == nil {
		now := time.Now().UTC()
		inventory := domain.DailyInventory{
			ID:            s.genID.Generate(),
			PrizeID:       prize.ID,
			Date:          req.Date,
			TotalQuantity: req.TotalQuantity,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateDailyInventory(ctx, s.db, &inventory); err != nil {
			return domain.DailyInventory{}, err
		}
		return inventory, nil
	}

	if req.TotalQuantity < existing.AwardedQuantity {
		return domain.DailyInventory{}, fmt.Errorf("%w: awarded %d",
			domain.ErrQuantityBelowAwarded, existing.AwardedQuantity)
	}
	if err := s.repo.AdjustTotalQuantity(ctx, s.db, existing.ID, req.TotalQuantity); err != nil {
		return domain.DailyInventory{}, err
	}

	updated, err := s.repo.FindDailyInventory(ctx, s.db, prize.ID, req.Date)
	if err != nil {
		return domain.DailyInventory{}, err
	}
	s.log.Info("inventory adjusted",
		zap.String("texture_key", req.TextureKey),
		zap.String("date", req.Date),
		zap.Int("total_quantity", req.TotalQuantity),
	)
	return *updated, nil
}

func (s *service) ResetDay(ctx context.Context, date string) error {
	if _, err := time.Parse(domain.DateFormat, date); err != nil {
		return domain.ErrInvalidDate
	}
	return s.repo.InTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.repo.ResetAwardedQuantities(ctx, tx, date); err != nil {
			return err
		}
		return s.repo.DeleteState(ctx, tx, domain.StateLastAwardTime)
	})
}

// ImportVouchers loads a batch of codes for one prize. Codes already
// present are skipped, not overwritten, so re-importing a file is safe.
func (s *service) ImportVouchers(ctx context.Context, req domain.ImportVouchersRequest) (domain.ImportVouchersResponse, error) {
	if len(req.Codes) == 0 {
		return domain.ImportVouchersResponse{}, domain.ErrInvalidCodes
	}

	prize, err := s.findPrize(ctx, req.TextureKey)
	if err != nil {
		return domain.ImportVouchersResponse{}, err
	}

	batchID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	now := time.Now().UTC()

	vouchers := make([]*domain.VoucherCode, 0, len(req.Codes))
	for _, code := range req.Codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		vouchers = append(vouchers, &domain.VoucherCode{
			ID:        s.genID.Generate(),
			PrizeID:   prize.ID,
			Code:      code,
			BatchID:   batchID,
			CreatedAt: now,
		})
	}
	if len(vouchers) == 0 {
		return domain.ImportVouchersResponse{}, domain.ErrInvalidCodes
	}

	var imported, skipped int
	err = s.repo.InTransaction(ctx, s.db, func(tx *gorm.DB) error {
		imported, skipped, err = s.repo.ImportVouchers(ctx, tx, vouchers)
		return err
	})
	if err != nil {
		return domain.ImportVouchersResponse{}, err
	}

	s.log.Info("vouchers imported",
		zap.String("texture_key", req.TextureKey),
		zap.String("batch_id", batchID),
		zap.Int("imported", imported),
		zap.Int("skipped", skipped),
	)
	return domain.ImportVouchersResponse{BatchID: batchID, Imported: imported, Skipped: skipped}, nil
}

func (s *service) VoucherCounts(ctx context.Context) ([]domain.VoucherCount, error) {
	return s.repo.VoucherCounts(ctx, s.db)
}

func (s *service) DeleteUnusedVouchers(ctx context.Context, textureKey string) (int64, error) {
	prize, err := s.findPrize(ctx, textureKey)
	if err != nil {
		return 0, err
	}
	deleted, err := s.repo.DeleteUnusedVouchers(ctx, s.db, prize.ID)
	if err != nil {
		return 0, err
	}
	s.log.Info("unused vouchers deleted",
		zap.String("texture_key", textureKey),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *service) CreateScheduledPrize(ctx context.Context, req domain.ScheduledPrizeRequest) (domain.ScheduledPrize, error) {
	prize, err := s.findPrize(ctx, req.TextureKey)
	if err != nil {
		return domain.ScheduledPrize{}, err
	}

	location := s.settings.Location()
	at, err := time.ParseInLocation("2006-01-02T15:04", req.Datetime, location)
	if err != nil {
		at, err = time.Parse(time.RFC3339, req.Datetime)
		if err != nil {
			return domain.ScheduledPrize{}, domain.ErrInvalidDatetime
		}
	}

	scheduled := domain.ScheduledPrize{
		ID:       s.genID.Generate(),
		PrizeID:  prize.ID,
		Datetime: at.UTC(),
		Date:     at.In(location).Format(domain.DateFormat),
	}
	if err := s.repo.CreateScheduledPrize(ctx, s.db, &scheduled); err != nil {
		return domain.ScheduledPrize{}, err
	}
	return scheduled, nil
}

func (s *service) ListScheduledPrizes(ctx context.Context, date string) ([]*domain.ScheduledPrize, error) {
	if date != "" {
		if _, err := time.Parse(domain.DateFormat, date); err != nil {
			return nil, domain.ErrInvalidDate
		}
	}
	return s.repo.ListScheduledPrizes(ctx, s.db, date)
}

func (s *service) DeleteScheduledPrize(ctx context.Context, id snowflake.ID) error {
	return s.repo.DeleteScheduledPrize(ctx, s.db, id)
}

// AwardDueScheduledPrize awards the oldest due, un-awarded scheduled
// prize as a single transaction. Returns nil when nothing is due.
func (s *service) AwardDueScheduledPrize(ctx context.Context, now time.Time) (*domain.PlayLogEntry, error) {
	due, err := s.repo.DueScheduledPrizes(ctx, s.db, now)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	scheduled := due[0]

	prize, err := s.repo.FindPrizeByID(ctx, s.db, scheduled.PrizeID)
	if err != nil {
		return nil, err
	}
	if prize == nil {
		return nil, domain.ErrNotFound
	}

	entry := &domain.PlayLogEntry{
		ID:          s.genID.Generate(),
		Timestamp:   now.UTC(),
		Date:        now.In(s.settings.Location()).Format(domain.DateFormat),
		PrizeType:   domain.PrizeTypeScheduled,
		PrizeID:     fmt.Sprintf("scheduled-%s", scheduled.ID),
		DisplayName: prize.DisplayName,
	}
	err = s.repo.InTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.repo.AppendPlayLog(ctx, tx, entry); err != nil {
			return err
		}
		return s.repo.MarkScheduledAwarded(ctx, tx, scheduled.ID, now.UTC())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("scheduled prize awarded",
		zap.String("prize", prize.DisplayName),
		zap.Time("scheduled_for", scheduled.Datetime),
	)
	return entry, nil
}

func (s *service) Stats(ctx context.Context, date string) (domain.DailyStats, error) {
	if _, err := time.Parse(domain.DateFormat, date); err != nil {
		return domain.DailyStats{}, domain.ErrInvalidDate
	}

	playStats, err := s.repo.PlayStats(ctx, s.db, date)
	if err != nil {
		return domain.DailyStats{}, err
	}
	inventory, err := s.repo.ListDailyInventory(ctx, s.db, date)
	if err != nil {
		return domain.DailyStats{}, err
	}
	voucherCounts, err := s.repo.VoucherCounts(ctx, s.db)
	if err != nil {
		return domain.DailyStats{}, err
	}
	activePlan, err := s.repo.GetState(ctx, s.db, domain.StateActivePlan)
	if err != nil {
		return domain.DailyStats{}, err
	}

	vouchersByPrize := make(map[snowflake.ID]int64, len(voucherCounts))
	for _, count := range voucherCounts {
		vouchersByPrize[count.PrizeID] = count.Remaining
	}

	stats := domain.DailyStats{
		Date:          date,
		PlayStats:     playStats,
		VoucherCounts: voucherCounts,
		ActivePlan:    activePlan,
	}
	for _, row := range inventory {
		prize, err := s.repo.FindPrizeByID(ctx, s.db, row.PrizeID)
		if err != nil {
			return domain.DailyStats{}, err
		}
		if prize == nil {
			continue
		}
		stats.Prizes = append(stats.Prizes, domain.PrizeStats{
			ID:                prize.ID,
			Name:              prize.DisplayName,
			TextureKey:        prize.TextureKey,
			Awarded:           row.AwardedQuantity,
			Total:             row.TotalQuantity,
			Remaining:         row.Remaining(),
			VouchersRemaining: vouchersByPrize[prize.ID],
		})
		stats.TotalAwarded += row.AwardedQuantity
		stats.TotalInventory += row.TotalQuantity
		stats.TotalRemaining += row.Remaining()
	}
	return stats, nil
}

func (s *service) MarkPrinted(ctx context.Context, playLogID snowflake.ID, status string) error {
	switch status {
	case "printed", "failed", "skipped":
	default:
		return domain.ErrInvalidPrintStatus
	}
	return s.repo.UpdatePrintStatus(ctx, s.db, playLogID, status)
}

func (s *service) findPrize(ctx context.Context, textureKey string) (*domain.Prize, error) {
	textureKey = strings.TrimSpace(textureKey)
	if textureKey == "" {
		return nil, domain.ErrInvalidTextureKey
	}
	prize, err := s.repo.FindPrizeByTextureKey(ctx, s.db, textureKey)
	if err != nil {
		return nil, err
	}
	if prize == nil {
		return nil, domain.ErrNotFound
	}
	return prize, nil
}
