// Package engine holds the distribution orchestrator: the single entry
// point that turns one play request into a durable award decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/boothworks/prizebooth/internal/adaptive"
	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/observability/metrics"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPaused is the sentinel returned when the booth is paused; no
// outcome is produced and nothing is logged.
var ErrPaused = errors.New("paused")

// Outcome is the terminal result of one decision.
type Outcome struct {
	Type        string       `json:"type"`
	PrizeID     string       `json:"prize_id"`
	DisplayName string       `json:"display_name"`
	TextureKey  string       `json:"texture_key"`
	VoucherCode string       `json:"voucher_code,omitempty"`
	WishText    string       `json:"wish_text,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	PlayLogID   snowflake.ID `json:"play_log_id"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Repo     domain.Repository
	Dist     *adaptive.Distribution
	Settings *config.SettingsHolder
	Pause    *PauseController
	Clock    clock.Clock
	GenID    *snowflake.Node
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// Engine coordinates the calculator and the store. It owns no durable
// state of its own; decisions are serialized by mu so the combined
// remaining count seen by the probability check matches what the
// transaction mutates.
type Engine struct {
	db       *gorm.DB
	repo     domain.Repository
	dist     *adaptive.Distribution
	settings *config.SettingsHolder
	pause    *PauseController
	clock    clock.Clock
	genID    *snowflake.Node
	log      *zap.Logger
	metrics  *metrics.Metrics

	// decideMu serializes decisions end to end; planMu only guards the
	// active plan key so plan reads never wait on an in-flight decision.
	decideMu   sync.Mutex
	planMu     sync.RWMutex
	rng        *rand.Rand
	activePlan string
}

func New(p Params) *Engine {
	return &Engine{
		db:       p.DB,
		repo:     p.Repo,
		dist:     p.Dist,
		settings: p.Settings,
		pause:    p.Pause,
		clock:    p.Clock,
		genID:    p.GenID,
		log:      p.Log.Named("engine"),
		metrics:  p.Metrics,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Initialize restores durable engine state and prepares today's rows.
// Must run before the first DecideOutcome after process start.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.ensurePrizeDefinitions(ctx); err != nil {
		return err
	}

	plan, err := e.repo.GetState(ctx, e.db, domain.StateActivePlan)
	if err != nil {
		return err
	}
	settings := e.settings.Get()
	if plan == "" || !planExists(settings, plan) {
		plan = settings.DefaultPlan
		if plan == "" {
			for key := range settings.Plans {
				plan = key
				break
			}
		}
	}
	e.planMu.Lock()
	e.activePlan = plan
	e.planMu.Unlock()

	if err := e.dist.Reload(ctx, e.db); err != nil {
		return err
	}
	if err := e.EnsureToday(ctx); err != nil {
		return err
	}

	e.log.Info("engine initialized", zap.String("active_plan", plan))
	return nil
}

func planExists(settings config.Settings, key string) bool {
	_, ok := settings.Plans[key]
	return ok
}

func (e *Engine) ensurePrizeDefinitions(ctx context.Context) error {
	for _, def := range e.settings.Get().Prizes {
		existing, err := e.repo.FindPrizeByTextureKey(ctx, e.db, def.TextureKey)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		prize := &domain.Prize{
			ID:          e.genID.Generate(),
			TextureKey:  def.TextureKey,
			DisplayName: def.DisplayName,
			CreatedAt:   time.Now().UTC(),
		}
		if err := e.repo.CreatePrize(ctx, e.db, prize); err != nil {
			return err
		}
		e.log.Info("created prize definition", zap.String("texture_key", def.TextureKey))
	}
	return nil
}

// Today returns the current calendar date in the booth zone.
func (e *Engine) Today() string {
	return e.clock.Now().In(e.settings.Location()).Format(domain.DateFormat)
}

// EnsureToday lazily creates today's inventory rows from the active
// plan. Idempotent; this is how day rollover happens without a
// midnight job.
func (e *Engine) EnsureToday(ctx context.Context) error {
	return e.ensureDailyInventory(ctx, e.db, e.Today())
}

func (e *Engine) ensureDailyInventory(ctx context.Context, db *gorm.DB, date string) error {
	settings := e.settings.Get()
	plan, ok := settings.Plans[e.ActivePlan()]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrPlanNotFound, e.ActivePlan())
	}

	for _, def := range settings.Prizes {
		prize, err := e.repo.FindPrizeByTextureKey(ctx, db, def.TextureKey)
		if err != nil {
			return err
		}
		if prize == nil {
			continue
		}
		existing, err := e.repo.FindDailyInventory(ctx, db, prize.ID, date)
		if err != nil {
			return err
		}
		quantity := plan.Prizes[def.TextureKey]
		if existing == nil && quantity > 0 {
			now := time.Now().UTC()
			err := e.repo.CreateDailyInventory(ctx, db, &domain.DailyInventory{
				ID:            e.genID.Generate(),
				PrizeID:       prize.ID,
				Date:          date,
				TotalQuantity: quantity,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			if err != nil {
				return err
			}
			e.log.Info("created daily inventory",
				zap.String("texture_key", def.TextureKey),
				zap.String("date", date),
				zap.Int("quantity", quantity),
			)
		}
	}
	return nil
}

// ActivePlan returns the key of the active distribution plan.
func (e *Engine) ActivePlan() string {
	e.planMu.RLock()
	defer e.planMu.RUnlock()
	return e.activePlan
}

// SetActivePlan switches the active distribution plan and re-applies
// today's quantities. A prize's total is never reduced below its
// awarded count, even mid-day.
func (e *Engine) SetActivePlan(ctx context.Context, key string) error {
	settings := e.settings.Get()
	plan, ok := settings.Plans[key]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrPlanNotFound, key)
	}

	if err := e.repo.SetState(ctx, e.db, domain.StateActivePlan, key); err != nil {
		return err
	}
	e.planMu.Lock()
	e.activePlan = key
	e.planMu.Unlock()
	e.log.Info("active plan changed", zap.String("plan", key))

	date := e.Today()
	for _, def := range settings.Prizes {
		prize, err := e.repo.FindPrizeByTextureKey(ctx, e.db, def.TextureKey)
		if err != nil {
			return err
		}
		if prize == nil {
			continue
		}
		existing, err := e.repo.FindDailyInventory(ctx, e.db, prize.ID, date)
		if err != nil {
			return err
		}
		quantity := plan.Prizes[def.TextureKey]
		if existing != nil {
			if err := e.repo.AdjustTotalQuantity(ctx, e.db, existing.ID, quantity); err != nil {
				return err
			}
		} else if quantity > 0 {
			now := time.Now().UTC()
			err := e.repo.CreateDailyInventory(ctx, e.db, &domain.DailyInventory{
				ID:            e.genID.Generate(),
				PrizeID:       prize.ID,
				Date:          date,
				TotalQuantity: quantity,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// DecideOutcome runs one play decision to a terminal outcome. The
// sequence is linear: pause check, inventory ensure, probability check,
// win or lose, persist, return. A failed transaction aborts the whole
// request; no partial mutation is ever visible.
func (e *Engine) DecideOutcome(ctx context.Context) (*Outcome, error) {
	if e.pause.IsPaused() {
		return nil, ErrPaused
	}

	e.decideMu.Lock()
	defer e.decideMu.Unlock()

	now := e.clock.Now()
	date := now.In(e.settings.Location()).Format(domain.DateFormat)

	if err := e.ensureDailyInventory(ctx, e.db, date); err != nil {
		return nil, err
	}

	candidates, totalRemaining, err := e.inventoryCandidates(ctx, date)
	if err != nil {
		return nil, err
	}

	probability := e.dist.Probability(now, totalRemaining)
	e.metrics.WinProbability.Observe(probability)
	win := totalRemaining > 0 && e.dist.Decide(probability)

	var (
		outcome        *Outcome
		exhaustedPrize string
		awarded        bool
	)

	err = e.repo.InTransaction(ctx, e.db, func(tx *gorm.DB) error {
		if win {
			selected := e.dist.SelectProportional(candidates)
			if selected != nil {
				voucher, err := e.repo.AvailableVoucher(ctx, tx, selected.Prize.ID)
				if err != nil {
					return err
				}
				if voucher == nil {
					// Hard resource-exhaustion signal: pause after
					// commit, hand this player a consolation.
					exhaustedPrize = selected.Prize.DisplayName
				} else {
					won, err := e.award(ctx, tx, now, date, selected, voucher, probability)
					if err != nil {
						return err
					}
					outcome = won
					awarded = true
					return nil
				}
			}
		}

		lost, err := e.consolation(ctx, tx, now, date)
		if err != nil {
			return err
		}
		outcome = lost
		return nil
	})
	if err != nil {
		return nil, err
	}

	if awarded {
		e.dist.Commit(now)
		e.metrics.Plays.WithLabelValues(domain.PrizeTypeInventory).Inc()
		e.metrics.VouchersUsed.Inc()
		e.log.Info("inventory prize awarded",
			zap.String("prize", outcome.DisplayName),
			zap.Float64("probability", probability),
		)
	} else {
		e.metrics.Plays.WithLabelValues(domain.PrizeTypeConsolation).Inc()
	}

	if exhaustedPrize != "" {
		e.metrics.PauseEvents.Inc()
		e.pause.Pause(fmt.Sprintf("voucher codes for %s depleted", exhaustedPrize))
	}

	return outcome, nil
}

func (e *Engine) inventoryCandidates(ctx context.Context, date string) ([]adaptive.Candidate, int, error) {
	var candidates []adaptive.Candidate
	total := 0
	for _, def := range e.settings.Get().Prizes {
		prize, err := e.repo.FindPrizeByTextureKey(ctx, e.db, def.TextureKey)
		if err != nil {
			return nil, 0, err
		}
		if prize == nil {
			continue
		}
		remaining, err := e.repo.RemainingInventory(ctx, e.db, prize.ID, date)
		if err != nil {
			return nil, 0, err
		}
		if remaining > 0 {
			candidates = append(candidates, adaptive.Candidate{Prize: prize, Remaining: remaining})
			total += remaining
		}
	}
	return candidates, total, nil
}

// award performs the four mutations of a win inside the caller's
// transaction: play-log append, inventory increment, voucher
// consumption, last-award persistence.
func (e *Engine) award(ctx context.Context, tx *gorm.DB, now time.Time, date string, selected *adaptive.Candidate, voucher *domain.VoucherCode, probability float64) (*Outcome, error) {
	inventory, err := e.repo.FindDailyInventory(ctx, tx, selected.Prize.ID, date)
	if err != nil {
		return nil, err
	}
	if inventory == nil {
		return nil, domain.ErrInventoryExhausted
	}

	remaining := selected.Remaining - 1
	total := inventory.TotalQuantity
	entry := &domain.PlayLogEntry{
		ID:                 e.genID.Generate(),
		Timestamp:          now.UTC(),
		Date:               date,
		PrizeType:          domain.PrizeTypeInventory,
		PrizeID:            fmt.Sprintf("inventory-%s", selected.Prize.ID),
		DisplayName:        selected.Prize.DisplayName,
		WinProbability:     probability,
		InventoryRemaining: &remaining,
		InventoryTotal:     &total,
	}
	if err := e.repo.AppendPlayLog(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := e.repo.IncrementAwarded(ctx, tx, selected.Prize.ID, date); err != nil {
		return nil, err
	}
	if err := e.repo.MarkVoucherUsed(ctx, tx, voucher.ID, entry.ID, now.UTC()); err != nil {
		return nil, err
	}
	if err := e.dist.PersistAward(ctx, tx, now); err != nil {
		return nil, err
	}

	return &Outcome{
		Type:        domain.PrizeTypeInventory,
		PrizeID:     entry.PrizeID,
		DisplayName: selected.Prize.DisplayName,
		TextureKey:  selected.Prize.TextureKey,
		VoucherCode: voucher.Code,
		Timestamp:   now,
		PlayLogID:   entry.ID,
	}, nil
}

func (e *Engine) consolation(ctx context.Context, tx *gorm.DB, now time.Time, date string) (*Outcome, error) {
	entry := &domain.PlayLogEntry{
		ID:             e.genID.Generate(),
		Timestamp:      now.UTC(),
		Date:           date,
		PrizeType:      domain.PrizeTypeConsolation,
		PrizeID:        "consolation",
		DisplayName:    "No prize",
		WinProbability: 0,
	}
	if err := e.repo.AppendPlayLog(ctx, tx, entry); err != nil {
		return nil, err
	}

	wishes := e.settings.Get().ConsolationWishes
	wish := ""
	if len(wishes) > 0 {
		wish = wishes[e.rng.Intn(len(wishes))]
	}

	return &Outcome{
		Type:        domain.PrizeTypeConsolation,
		PrizeID:     "consolation",
		DisplayName: "No prize",
		TextureKey:  "none",
		WishText:    wish,
		Timestamp:   now,
		PlayLogID:   entry.ID,
	}, nil
}

// ResetDay clears awarded counts and the last-award timestamp for a
// date, through the store contract rather than a raw handle.
func (e *Engine) ResetDay(ctx context.Context, date string) error {
	e.decideMu.Lock()
	defer e.decideMu.Unlock()
	err := e.repo.InTransaction(ctx, e.db, func(tx *gorm.DB) error {
		return e.repo.ResetAwardedQuantities(ctx, tx, date)
	})
	if err != nil {
		return err
	}
	return e.dist.Reset(ctx, e.db)
}

var Module = fx.Module("engine",
	fx.Provide(NewPauseController),
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return e.Initialize(ctx)
			},
		})
	}),
)
