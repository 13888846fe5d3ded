package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	assert.NoError(t, ValidateSettings(DefaultSettings()))
}

func TestValidateSettingsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"malformed open time", func(s *Settings) { s.OperatingHours.OpenTime = "ten" }},
		{"malformed close time", func(s *Settings) { s.OperatingHours.CloseTime = "25:00" }},
		{"close before open", func(s *Settings) { s.OperatingHours = OperatingHours{OpenTime: "20:00", CloseTime: "10:00"} }},
		{"close equals open", func(s *Settings) { s.OperatingHours = OperatingHours{OpenTime: "10:00", CloseTime: "10:00"} }},
		{"zero window start", func(s *Settings) { s.Algorithm.WindowStart = 0 }},
		{"window end below start", func(s *Settings) { s.Algorithm.WindowEnd = s.Algorithm.WindowStart / 2 }},
		{"probability above one", func(s *Settings) { s.Algorithm.UrgentProbability = 1.5 }},
		{"negative probability", func(s *Settings) { s.Algorithm.MinProbability = -0.1 }},
		{"ramp bounds inverted", func(s *Settings) { s.Algorithm.RampStart = 0.8; s.Algorithm.RampEnd = 0.2 }},
		{"no prizes", func(s *Settings) { s.Prizes = nil }},
		{"empty texture key", func(s *Settings) { s.Prizes[0].TextureKey = " " }},
		{"duplicate texture key", func(s *Settings) {
			s.Prizes = append(s.Prizes, PrizeDefinition{TextureKey: s.Prizes[0].TextureKey, DisplayName: "Copy"})
		}},
		{"no plans", func(s *Settings) { s.Plans = nil; s.DefaultPlan = "" }},
		{"negative plan quantity", func(s *Settings) {
			plan := s.Plans["standard"]
			plan.Prizes = map[string]int{"prize-a": -1}
			s.Plans["standard"] = plan
		}},
		{"unknown default plan", func(s *Settings) { s.DefaultPlan = "missing" }},
		{"no consolation wishes", func(s *Settings) { s.ConsolationWishes = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := DefaultSettings()
			tc.mutate(&settings)
			assert.Error(t, ValidateSettings(settings))
		})
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("10:05")
	require.NoError(t, err)
	assert.Equal(t, 10, hour)
	assert.Equal(t, 5, minute)

	for _, bad := range []string{"", "10", "10:60", "24:00", "-1:00", "aa:bb"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestCloseTimeOverride(t *testing.T) {
	holder, err := NewStaticSettingsHolder(DefaultSettings())
	require.NoError(t, err)

	assert.Equal(t, "20:00", holder.CloseTime())

	require.NoError(t, holder.OverrideCloseTime("18:30"))
	assert.Equal(t, "18:30", holder.CloseTime())

	assert.Error(t, holder.OverrideCloseTime("not-a-time"))
	assert.Equal(t, "18:30", holder.CloseTime(), "bad override leaves the previous value")

	require.NoError(t, holder.OverrideCloseTime(""))
	assert.Equal(t, "20:00", holder.CloseTime())
}
