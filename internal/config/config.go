// Package config loads the simulator's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
)

// Config is the fully resolved simulator configuration.
type Config struct {
	Schedule  logic.Schedule
	Holds     logic.Holds
	Pins      map[logic.Channel]int
	Chip      string
	Debounce  time.Duration
	Tick      time.Duration
	Heartbeat time.Duration // zero disables
	Broker    string        // empty disables MQTT
	ClientID  string
	HTTPAddr  string // empty disables the status server
	CSVPath   string // empty disables the CSV log
	DBPath    string // empty disables the SQLite history
	Seed      int64  // zero seeds from the clock
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Schedule:  logic.DefaultSchedule(),
		Holds:     logic.DefaultHolds(),
		Pins:      gpio.DefaultPins(),
		Chip:      "gpiochip0",
		Debounce:  gpio.DefaultDebounce,
		Tick:      time.Second,
		Heartbeat: 15 * time.Minute,
		Broker:    "tcp://localhost:1883",
		ClientID:  "baby-doll",
		HTTPAddr:  ":8080",
		CSVPath:   "baby_doll_activity.csv",
		DBPath:    "baby_doll.db",
	}
}

type yamlRange struct {
	MinMinutes int `yaml:"min_minutes"`
	MaxMinutes int `yaml:"max_minutes"`
}

type yamlConfig struct {
	Schedule struct {
		Sleep  yamlRange `yaml:"sleep"`
		Hunger yamlRange `yaml:"hunger"`
		Diaper yamlRange `yaml:"diaper"`
	} `yaml:"schedule"`
	Holds struct {
		HungerSeconds int `yaml:"hunger_seconds"`
		DiaperSeconds int `yaml:"diaper_seconds"`
	} `yaml:"holds"`
	GPIO struct {
		Chip       string `yaml:"chip"`
		HungerPin  *int   `yaml:"hunger_pin"`
		DiaperPin  *int   `yaml:"diaper_pin"`
		DebounceMs *int   `yaml:"debounce_ms"`
	} `yaml:"gpio"`
	MQTT struct {
		Broker   *string `yaml:"broker"`
		ClientID string  `yaml:"client_id"`
	} `yaml:"mqtt"`
	TickMs           int     `yaml:"tick_ms"`
	HeartbeatSeconds *int    `yaml:"heartbeat_seconds"`
	HTTPAddr         *string `yaml:"http_addr"`
	CSVPath          *string `yaml:"csv_path"`
	DBPath           *string `yaml:"db_path"`
	Seed             int64   `yaml:"seed"`
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults. Durations override only when positive; pointer fields
// override whenever present, so an empty string disables that output.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	apply(&cfg, y)
	return cfg, nil
}

func applyRange(r *logic.Range, y yamlRange) {
	if y.MinMinutes > 0 {
		r.Min = time.Duration(y.MinMinutes) * time.Minute
	}
	if y.MaxMinutes > 0 {
		r.Max = time.Duration(y.MaxMinutes) * time.Minute
	}
}

func apply(cfg *Config, y yamlConfig) {
	applyRange(&cfg.Schedule.Sleep, y.Schedule.Sleep)
	applyRange(&cfg.Schedule.Hunger, y.Schedule.Hunger)
	applyRange(&cfg.Schedule.Diaper, y.Schedule.Diaper)

	if y.Holds.HungerSeconds > 0 {
		cfg.Holds[logic.ChannelHunger] = time.Duration(y.Holds.HungerSeconds) * time.Second
	}
	if y.Holds.DiaperSeconds > 0 {
		cfg.Holds[logic.ChannelDiaper] = time.Duration(y.Holds.DiaperSeconds) * time.Second
	}

	if y.GPIO.Chip != "" {
		cfg.Chip = y.GPIO.Chip
	}
	if y.GPIO.HungerPin != nil {
		cfg.Pins[logic.ChannelHunger] = *y.GPIO.HungerPin
	}
	if y.GPIO.DiaperPin != nil {
		cfg.Pins[logic.ChannelDiaper] = *y.GPIO.DiaperPin
	}
	if y.GPIO.DebounceMs != nil {
		cfg.Debounce = time.Duration(*y.GPIO.DebounceMs) * time.Millisecond
	}

	if y.MQTT.Broker != nil {
		cfg.Broker = *y.MQTT.Broker
	}
	if y.MQTT.ClientID != "" {
		cfg.ClientID = y.MQTT.ClientID
	}

	if y.TickMs > 0 {
		cfg.Tick = time.Duration(y.TickMs) * time.Millisecond
	}
	if y.HeartbeatSeconds != nil {
		cfg.Heartbeat = time.Duration(*y.HeartbeatSeconds) * time.Second
	}
	if y.HTTPAddr != nil {
		cfg.HTTPAddr = *y.HTTPAddr
	}
	if y.CSVPath != nil {
		cfg.CSVPath = *y.CSVPath
	}
	if y.DBPath != nil {
		cfg.DBPath = *y.DBPath
	}
	if y.Seed != 0 {
		cfg.Seed = y.Seed
	}
}

// Validate reports the first problem that would make the simulator
// misbehave.
func (c Config) Validate() error {
	ranges := []struct {
		name string
		r    logic.Range
	}{
		{"sleep", c.Schedule.Sleep},
		{"hunger", c.Schedule.Hunger},
		{"diaper", c.Schedule.Diaper},
	}
	for _, x := range ranges {
		if x.r.Min <= 0 {
			return fmt.Errorf("%s interval: minimum must be positive", x.name)
		}
		if x.r.Min > x.r.Max {
			return fmt.Errorf("%s interval: minimum %s exceeds maximum %s", x.name, x.r.Min, x.r.Max)
		}
	}

	seen := make(map[int]logic.Channel)
	for _, ch := range logic.Channels {
		if c.Holds[ch] <= 0 {
			return fmt.Errorf("hold duration for %s must be positive", ch)
		}
		pin, ok := c.Pins[ch]
		if !ok {
			return fmt.Errorf("no pin configured for %s", ch)
		}
		if pin < 0 {
			return fmt.Errorf("pin %d for %s is negative", pin, ch)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("pin %d used by both %s and %s", pin, other, ch)
		}
		seen[pin] = ch
	}

	if c.Tick <= 0 || c.Tick > time.Second {
		return fmt.Errorf("tick %s must be positive and at most 1s", c.Tick)
	}
	if c.Debounce < gpio.DefaultDebounce {
		return fmt.Errorf("debounce %s is below the %s minimum", c.Debounce, gpio.DefaultDebounce)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative")
	}
	return nil
}
