// Package adaptive implements the time-based adaptive distribution
// algorithm. Awards are paced toward a target interval derived from the
// time left in the operating day and the inventory left to hand out:
// too soon after the last award the probability is floored, inside the
// window it ramps linearly, and overdue awards become near-certain.
package adaptive

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Candidate pairs a prize with its remaining inventory for proportional
// selection.
type Candidate struct {
	Prize     *domain.Prize
	Remaining int
}

// Distribution computes award probabilities. The last-award timestamp
// is cached in memory and persisted through the store so it survives
// restarts; the cache is only a mirror of the durable value.
type Distribution struct {
	settings *config.SettingsHolder
	repo     domain.Repository
	log      *zap.Logger

	mu        sync.RWMutex
	lastAward *time.Time
	rng       *rand.Rand
}

func New(settings *config.SettingsHolder, repo domain.Repository, log *zap.Logger) *Distribution {
	return &Distribution{
		settings: settings,
		repo:     repo,
		log:      log.Named("adaptive"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the random source, for deterministic tests.
func (d *Distribution) SetRand(rng *rand.Rand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rng = rng
}

// Reload restores the cached last-award timestamp from the store. It
// must run before the first Probability call after a restart, otherwise
// a mid-day restart would be treated as a fresh day.
func (d *Distribution) Reload(ctx context.Context, db *gorm.DB) error {
	value, err := d.repo.GetState(ctx, db, domain.StateLastAwardTime)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if value == "" {
		d.lastAward = nil
		d.log.Info("no previous last-award timestamp found")
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return err
	}
	d.lastAward = &parsed
	d.log.Info("restored last-award timestamp", zap.Time("last_award", parsed))
	return nil
}

// PersistAward writes the last-award timestamp through the given handle,
// which is expected to be the award transaction. The in-memory cache is
// not touched here; call Commit once the transaction has committed.
func (d *Distribution) PersistAward(ctx context.Context, tx *gorm.DB, now time.Time) error {
	return d.repo.SetState(ctx, tx, domain.StateLastAwardTime, now.UTC().Format(time.RFC3339Nano))
}

// Commit updates the in-memory cache. Only call after the transaction
// carrying PersistAward has committed.
func (d *Distribution) Commit(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAward = &now
}

// Reset clears both the durable and cached last-award timestamp.
func (d *Distribution) Reset(ctx context.Context, db *gorm.DB) error {
	if err := d.repo.DeleteState(ctx, db, domain.StateLastAwardTime); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAward = nil
	return nil
}

// Probability computes the win probability for a single play given the
// combined remaining inventory. All time-of-day arithmetic happens in
// the configured booth zone regardless of the server zone.
func (d *Distribution) Probability(now time.Time, inventoryRemaining int) float64 {
	if inventoryRemaining <= 0 {
		return 0
	}

	algorithm := d.settings.Get().Algorithm
	location := d.settings.Location()
	local := now.In(location)

	openHour, openMinute, err := config.ParseClock(d.settings.OpenTime())
	if err != nil {
		d.log.Error("invalid open time", zap.Error(err))
		return 0
	}
	closeHour, closeMinute, err := config.ParseClock(d.settings.CloseTime())
	if err != nil {
		d.log.Error("invalid close time", zap.Error(err))
		return 0
	}

	openAt := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, location)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, location)

	if local.Before(openAt) {
		return 0
	}

	remaining := closeAt.Sub(local).Seconds()
	if remaining <= 0 {
		return algorithm.UrgentProbability
	}

	targetInterval := remaining / float64(inventoryRemaining)

	var elapsed float64
	d.mu.RLock()
	lastAward := d.lastAward
	d.mu.RUnlock()
	if lastAward == nil {
		// First award of the day is measured from opening, not from
		// epoch, so the first hour is not starved.
		elapsed = local.Sub(openAt).Seconds()
	} else {
		elapsed = local.Sub(lastAward.In(location)).Seconds()
	}

	windowStart := targetInterval * algorithm.WindowStart
	windowEnd := targetInterval * algorithm.WindowEnd

	var probability float64
	switch {
	case elapsed < windowStart:
		probability = algorithm.MinProbability
	case elapsed > windowEnd:
		probability = algorithm.UrgentProbability
	default:
		progress := (elapsed - windowStart) / (windowEnd - windowStart)
		probability = algorithm.RampStart + progress*(algorithm.RampEnd-algorithm.RampStart)
	}

	d.log.Debug("probability computed",
		zap.Int("inventory_remaining", inventoryRemaining),
		zap.Float64("remaining_seconds", remaining),
		zap.Float64("target_interval", targetInterval),
		zap.Float64("elapsed", elapsed),
		zap.Float64("probability", probability),
	)

	return probability
}

// Decide flips the weighted coin.
func (d *Distribution) Decide(probability float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() < probability
}

// SelectProportional picks a candidate by weighted random over remaining
// counts (cumulative-weight selection). Returns nil when no candidate
// has inventory left.
func (d *Distribution) SelectProportional(candidates []Candidate) *Candidate {
	available := make([]Candidate, 0, len(candidates))
	total := 0
	for _, candidate := range candidates {
		if candidate.Remaining > 0 {
			available = append(available, candidate)
			total += candidate.Remaining
		}
	}
	if len(available) == 0 {
		return nil
	}
	if len(available) == 1 {
		return &available[0]
	}

	d.mu.Lock()
	draw := d.rng.Float64() * float64(total)
	d.mu.Unlock()

	cumulative := 0.0
	for i := range available {
		cumulative += float64(available[i].Remaining)
		if draw < cumulative {
			return &available[i]
		}
	}
	return &available[len(available)-1]
}

// LastAward exposes the cached timestamp for stats and tests.
func (d *Distribution) LastAward() *time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastAward == nil {
		return nil
	}
	t := *d.lastAward
	return &t
}
