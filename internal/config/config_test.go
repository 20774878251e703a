package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load should succeed with defaults: %v", err)
	}

	if cfg.App.Name != "trendwatcher" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Feed.UpdateInterval != 24*time.Hour {
		t.Fatalf("unexpected update interval %s", cfg.Feed.UpdateInterval)
	}
	if cfg.Scheduler.CheckInterval != time.Hour {
		t.Fatalf("unexpected check interval %s", cfg.Scheduler.CheckInterval)
	}
	if cfg.Analytics.MovingAverageWindow != 20 || cfg.Analytics.RSIPeriod != 14 {
		t.Fatalf("unexpected analytics defaults %+v", cfg.Analytics)
	}
	if cfg.Band.LowerBound != 40 || cfg.Band.UpperBound != 60 || !cfg.Band.Hysteretic {
		t.Fatalf("unexpected band defaults %+v", cfg.Band)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load should succeed: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"check interval above update interval", func(c *Config) { c.Scheduler.CheckInterval = 48 * time.Hour }, "check_interval"},
		{"window above history", func(c *Config) { c.Analytics.MovingAverageWindow = c.Feed.MaxDataPoints + 1 }, "moving_average_window"},
		{"rsi above history", func(c *Config) { c.Analytics.RSIPeriod = c.Feed.MaxDataPoints }, "rsi_period"},
		{"inverted confirmation window", func(c *Config) { c.Trigger.ConfirmationMinTime = 2 * c.Trigger.ConfirmationMaxTime }, "confirmation_min_time"},
		{"inverted band", func(c *Config) { c.Band.LowerBound, c.Band.UpperBound = 60, 40 }, "lower_bound"},
		{"bad initial allocation", func(c *Config) { c.Band.InitialAllocation = 50 }, "initial_allocation"},
		{"telegram without token", func(c *Config) { c.Alerting.Telegram.Enabled = true }, "bot_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}
