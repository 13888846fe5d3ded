package adaptive

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

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

func testSettings(t *testing.T) *config.SettingsHolder {
	t.Helper()
	settings := config.DefaultSettings()
	settings.OperatingHours = config.OperatingHours{OpenTime: "10:00", CloseTime: "20:00"}
	settings.Algorithm = config.AlgorithmConfig{
		WindowStart:       0.7,
		WindowEnd:         1.5,
		MinProbability:    0.02,
		RampStart:         0.15,
		RampEnd:           0.75,
		UrgentProbability: 0.95,
	}
	holder, err := config.NewStaticSettingsHolder(settings)
	require.NoError(t, err)
	return holder
}

func zurich(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, hour, minute, second int) time.Time {
	return time.Date(2026, time.June, 15, hour, minute, second, 0, loc)
}

func newDistribution(t *testing.T, repo domain.Repository) *Distribution {
	t.Helper()
	return New(testSettings(t), repo, zap.NewNop())
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	return db
}

func TestProbabilityZeroInventory(t *testing.T) {
	d := newDistribution(t, nil)
	loc := zurich(t)
	assert.Zero(t, d.Probability(at(loc, 12, 0, 0), 0))
	assert.Zero(t, d.Probability(at(loc, 12, 0, 0), -1))
}

func TestProbabilityBeforeOpen(t *testing.T) {
	d := newDistribution(t, nil)
	loc := zurich(t)
	assert.Zero(t, d.Probability(at(loc, 9, 59, 59), 20))
}

func TestProbabilityAfterClose(t *testing.T) {
	d := newDistribution(t, nil)
	loc := zurich(t)
	assert.Equal(t, 0.95, d.Probability(at(loc, 20, 0, 0), 20))
	assert.Equal(t, 0.95, d.Probability(at(loc, 23, 30, 0), 20))
}

func TestProbabilityColdStartAtOpen(t *testing.T) {
	// 20 remaining at open: target interval 1800s, window starts at
	// 1260s, elapsed since open is 0, so the floor applies.
	d := newDistribution(t, nil)
	loc := zurich(t)
	assert.Equal(t, 0.02, d.Probability(at(loc, 10, 0, 0), 20))
}

func TestProbabilityColdStartOverdue(t *testing.T) {
	// 10:45 with no award yet: 2700s elapsed since open exceeds the
	// window end (1.5 x 33300/20 = 2497.5s), so urgency kicks in.
	d := newDistribution(t, nil)
	loc := zurich(t)
	assert.Equal(t, 0.95, d.Probability(at(loc, 10, 45, 0), 20))
}

func TestProbabilityWindow(t *testing.T) {
	// Fixed at 15:00 with 20 remaining: 18000s left, target interval
	// 900s, window [630s, 1350s].
	loc := zurich(t)
	now := at(loc, 15, 0, 0)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"below window floors", 600 * time.Second, 0.02},
		{"window start is ramp start", 630 * time.Second, 0.15},
		{"midpoint is ramp midpoint", 990 * time.Second, 0.45},
		{"window end is ramp end", 1350 * time.Second, 0.75},
		{"past window is urgent", 1351 * time.Second, 0.95},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDistribution(t, nil)
			d.Commit(now.Add(-tc.elapsed))
			assert.InDelta(t, tc.want, d.Probability(now, 20), 1e-9)
		})
	}
}

func TestProbabilityMonotonicInWindow(t *testing.T) {
	loc := zurich(t)
	now := at(loc, 15, 0, 0)

	previous := 0.0
	for elapsed := 630; elapsed <= 1350; elapsed += 30 {
		d := newDistribution(t, nil)
		d.Commit(now.Add(-time.Duration(elapsed) * time.Second))
		p := d.Probability(now, 20)
		assert.GreaterOrEqual(t, p, previous, "elapsed=%ds", elapsed)
		previous = p
	}
}

func TestReloadRestoresLastAward(t *testing.T) {
	db := openTestDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	loc := zurich(t)

	awardedAt := at(loc, 14, 0, 0)

	first := New(testSettings(t), repo, zap.NewNop())
	require.NoError(t, first.PersistAward(ctx, db, awardedAt))
	first.Commit(awardedAt)

	// A restarted instance must compute the same probability at the
	// same elapsed time as the one that never restarted.
	restarted := New(testSettings(t), repo, zap.NewNop())
	require.NoError(t, restarted.Reload(ctx, db))

	probe := awardedAt.Add(15 * time.Minute)
	assert.InDelta(t, first.Probability(probe, 20), restarted.Probability(probe, 20), 1e-9)

	last := restarted.LastAward()
	require.NotNil(t, last)
	assert.True(t, last.Equal(awardedAt))
}

func TestResetClearsLastAward(t *testing.T) {
	db := openTestDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	loc := zurich(t)

	d := New(testSettings(t), repo, zap.NewNop())
	require.NoError(t, d.PersistAward(ctx, db, at(loc, 14, 0, 0)))
	d.Commit(at(loc, 14, 0, 0))

	require.NoError(t, d.Reset(ctx, db))
	assert.Nil(t, d.LastAward())

	value, err := repo.GetState(ctx, db, domain.StateLastAwardTime)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSelectProportionalRatio(t *testing.T) {
	d := newDistribution(t, nil)
	d.SetRand(rand.New(rand.NewSource(42)))

	prizeA := &domain.Prize{ID: snowflake.ID(1), TextureKey: "a"}
	prizeB := &domain.Prize{ID: snowflake.ID(2), TextureKey: "b"}
	candidates := []Candidate{
		{Prize: prizeA, Remaining: 80},
		{Prize: prizeB, Remaining: 20},
	}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		selected := d.SelectProportional(candidates)
		require.NotNil(t, selected)
		counts[selected.Prize.TextureKey]++
	}

	ratio := float64(counts["a"]) / float64(counts["b"])
	assert.InDelta(t, 4.0, ratio, 0.4, "a=%d b=%d", counts["a"], counts["b"])
}

func TestSelectProportionalSkipsDepleted(t *testing.T) {
	d := newDistribution(t, nil)

	only := &domain.Prize{ID: snowflake.ID(1), TextureKey: "a"}
	selected := d.SelectProportional([]Candidate{
		{Prize: &domain.Prize{ID: snowflake.ID(2), TextureKey: "empty"}, Remaining: 0},
		{Prize: only, Remaining: 3},
	})
	require.NotNil(t, selected)
	assert.Equal(t, "a", selected.Prize.TextureKey)

	assert.Nil(t, d.SelectProportional([]Candidate{
		{Prize: only, Remaining: 0},
	}))
	assert.Nil(t, d.SelectProportional(nil))
}
