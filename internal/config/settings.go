package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AlgorithmConfig parameterizes the adaptive probability window.
type AlgorithmConfig struct {
	WindowStart       float64 `mapstructure:"windowStart"`
	WindowEnd         float64 `mapstructure:"windowEnd"`
	MinProbability    float64 `mapstructure:"minProbability"`
	RampStart         float64 `mapstructure:"rampStart"`
	RampEnd           float64 `mapstructure:"rampEnd"`
	UrgentProbability float64 `mapstructure:"urgentProbability"`
}

type OperatingHours struct {
	OpenTime  string `mapstructure:"openTime"`
	CloseTime string `mapstructure:"closeTime"`
}

type PrizeDefinition struct {
	TextureKey  string `mapstructure:"textureKey"`
	DisplayName string `mapstructure:"displayName"`
}

// DistributionPlan maps texture keys to daily quantities.
type DistributionPlan struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Prizes      map[string]int `mapstructure:"prizes"`
}

// Settings is the booth configuration block. Operating hours and
// algorithm math are always evaluated in Timezone, never the server zone.
type Settings struct {
	MachineName       string                      `mapstructure:"machineName"`
	Timezone          string                      `mapstructure:"timezone"`
	OperatingHours    OperatingHours              `mapstructure:"operatingHours"`
	ConsolationWishes []string                    `mapstructure:"consolationWishes"`
	Algorithm         AlgorithmConfig             `mapstructure:"algorithm"`
	Prizes            []PrizeDefinition           `mapstructure:"prizes"`
	Plans             map[string]DistributionPlan `mapstructure:"plans"`
	DefaultPlan       string                      `mapstructure:"defaultPlan"`
}

func DefaultSettings() Settings {
	return Settings{
		MachineName: "booth-1",
		Timezone:    "Europe/Zurich",
		OperatingHours: OperatingHours{
			OpenTime:  "10:00",
			CloseTime: "20:00",
		},
		ConsolationWishes: []string{"Better luck next time!"},
		Algorithm: AlgorithmConfig{
			WindowStart:       0.7,
			WindowEnd:         1.5,
			MinProbability:    0.02,
			RampStart:         0.15,
			RampEnd:           0.75,
			UrgentProbability: 0.95,
		},
		Prizes: []PrizeDefinition{
			{TextureKey: "prize-a", DisplayName: "Prize A"},
			{TextureKey: "prize-b", DisplayName: "Prize B"},
		},
		Plans: map[string]DistributionPlan{
			"standard": {
				Name:        "Standard",
				Description: "Standard prize distribution",
				Prizes:      map[string]int{"prize-a": 100, "prize-b": 20},
			},
		},
		DefaultPlan: "standard",
	}
}

// SettingsHolder serves the current settings snapshot and hot-reloads it
// when the file changes. Invalid reloads are ignored; invalid startup
// settings are a hard error.
type SettingsHolder struct {
	current       atomic.Value // holds Settings
	location      *time.Location
	closeOverride atomic.Value // holds string, "" when unset
}

func NewSettingsHolder(cfg Config) (*SettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("settings")
	v.SetConfigType("yml")
	for _, path := range cfg.SettingsPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("PRIZEBOOTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSettings()
		v.SetDefault("booth", defaults)
	}

	var settings Settings
	if err := v.UnmarshalKey("booth", &settings); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	holder := &SettingsHolder{location: location}
	holder.current.Store(settings)
	holder.closeOverride.Store("")

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Settings
		if err := v.UnmarshalKey("booth", &updated); err != nil {
			log.Printf("[settings] reload failed: %v", err)
			return
		}
		if err := ValidateSettings(updated); err != nil {
			log.Printf("[settings] invalid settings ignored: %v", err)
			return
		}
		if updated.Timezone != holder.Get().Timezone {
			log.Printf("[settings] timezone change ignored until restart")
			updated.Timezone = holder.Get().Timezone
		}
		holder.current.Store(updated)
		log.Printf("[settings] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSettingsHolder wraps a fixed settings value, for tests.
func NewStaticSettingsHolder(settings Settings) (*SettingsHolder, error) {
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, err
	}
	holder := &SettingsHolder{location: location}
	holder.current.Store(settings)
	holder.closeOverride.Store("")
	return holder, nil
}

func (h *SettingsHolder) Get() Settings {
	return h.current.Load().(Settings)
}

// Location is the fixed operating zone; it does not change on reload.
func (h *SettingsHolder) Location() *time.Location {
	return h.location
}

func (h *SettingsHolder) OpenTime() string {
	return h.Get().OperatingHours.OpenTime
}

// CloseTime returns the administrative override when one is set,
// otherwise the configured closing time. Callers must read it per
// decision, never cache it.
func (h *SettingsHolder) CloseTime() string {
	if v := h.closeOverride.Load().(string); v != "" {
		return v
	}
	return h.Get().OperatingHours.CloseTime
}

// OverrideCloseTime sets a runtime closing time ("HH:MM"); empty clears
// the override.
func (h *SettingsHolder) OverrideCloseTime(value string) error {
	value = strings.TrimSpace(value)
	if value != "" {
		if _, _, err := ParseClock(value); err != nil {
			return err
		}
	}
	h.closeOverride.Store(value)
	return nil
}

// ValidateSettings enforces the startup contract: the engine must refuse
// to run with undefined probability behavior.
func ValidateSettings(s Settings) error {
	openH, openM, err := ParseClock(s.OperatingHours.OpenTime)
	if err != nil {
		return fmt.Errorf("operatingHours.openTime: %w", err)
	}
	closeH, closeM, err := ParseClock(s.OperatingHours.CloseTime)
	if err != nil {
		return fmt.Errorf("operatingHours.closeTime: %w", err)
	}
	if closeH*60+closeM <= openH*60+openM {
		return errors.New("operatingHours: closeTime must be after openTime")
	}

	a := s.Algorithm
	if a.WindowStart <= 0 || a.WindowEnd <= a.WindowStart {
		return errors.New("algorithm: require 0 < windowStart < windowEnd")
	}
	for name, p := range map[string]float64{
		"minProbability":    a.MinProbability,
		"rampStart":         a.RampStart,
		"rampEnd":           a.RampEnd,
		"urgentProbability": a.UrgentProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("algorithm: %s must be in [0,1]", name)
		}
	}
	if a.RampStart > a.RampEnd {
		return errors.New("algorithm: rampStart must not exceed rampEnd")
	}

	if len(s.Prizes) == 0 {
		return errors.New("prizes cannot be empty")
	}
	seen := make(map[string]bool, len(s.Prizes))
	for _, p := range s.Prizes {
		if strings.TrimSpace(p.TextureKey) == "" {
			return errors.New("prizes: textureKey cannot be empty")
		}
		if seen[p.TextureKey] {
			return fmt.Errorf("prizes: duplicate textureKey %q", p.TextureKey)
		}
		seen[p.TextureKey] = true
	}

	if len(s.Plans) == 0 {
		return errors.New("plans cannot be empty")
	}
	for key, plan := range s.Plans {
		for textureKey, quantity := range plan.Prizes {
			if quantity < 0 {
				return fmt.Errorf("plans.%s: negative quantity for %q", key, textureKey)
			}
		}
	}
	if s.DefaultPlan != "" {
		if _, ok := s.Plans[s.DefaultPlan]; !ok {
			return fmt.Errorf("defaultPlan %q is not a configured plan", s.DefaultPlan)
		}
	}

	if len(s.ConsolationWishes) == 0 {
		return errors.New("consolationWishes cannot be empty")
	}

	return nil
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(value string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", value)
	}
	return hour, minute, nil
}
