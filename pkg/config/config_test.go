package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	c := &Config{Environment: "test"}
	c.Intake.Backend = "kafka"
	c.Intake.Instruments = []string{"AAPL"}
	c.Kafka.Consumer.AutoOffsetReset = "latest"
	c.Notify.Backend = "kafka"
	c.Engine.Aggregation.Policy = "majority"
	c.Engine.Dedup.Backend = "memory"
	c.Engine.Thresholds.Source = "config"
	c.Engine.Timeframes = []string{"15m", "1h", "1d"}
	return c
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateAllowsRedisBackedOptions(t *testing.T) {
	c := validConfig()
	c.Redis.Enabled = true
	c.Notify.Backend = "queue"
	c.Engine.Dedup.Backend = "redis"
	if err := c.Validate(); err != nil {
		t.Fatalf("redis-backed config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing environment", func(c *Config) { c.Environment = "" }},
		{"unknown intake backend", func(c *Config) { c.Intake.Backend = "carrier-pigeon" }},
		{"kafka intake without instruments", func(c *Config) { c.Intake.Instruments = nil }},
		{"unknown offset reset", func(c *Config) { c.Kafka.Consumer.AutoOffsetReset = "sometimes" }},
		{"unknown notify backend", func(c *Config) { c.Notify.Backend = "smoke-signal" }},
		{"queue notify without redis", func(c *Config) { c.Notify.Backend = "queue" }},
		{"unknown aggregation policy", func(c *Config) { c.Engine.Aggregation.Policy = "plurality" }},
		{"unknown dedup backend", func(c *Config) { c.Engine.Dedup.Backend = "sqlite" }},
		{"redis dedup without redis", func(c *Config) { c.Engine.Dedup.Backend = "redis" }},
		{"unknown threshold source", func(c *Config) { c.Engine.Thresholds.Source = "mysql" }},
		{"unsupported timeframe", func(c *Config) { c.Engine.Timeframes = []string{"3h"} }},
		{"threshold row without zone", func(c *Config) {
			c.Engine.Thresholds.Markets = map[string][]ThresholdRow{
				"US": {{Indicator: "line", Op: ">", Min: 1}},
			}
		}},
		{"threshold row without indicator", func(c *Config) {
			c.Engine.Thresholds.Markets = map[string][]ThresholdRow{
				"US": {{Zone: "bull", Op: ">", Min: 1}},
			}
		}},
		{"threshold row with bad timeframe", func(c *Config) {
			c.Engine.Thresholds.Instruments = map[string][]ThresholdRow{
				"AAPL": {{TF: "2h", Indicator: "line", Zone: "bull", Op: ">", Min: 1}},
			}
		}},
		{"threshold row with unknown op", func(c *Config) {
			c.Engine.Thresholds.Instruments = map[string][]ThresholdRow{
				"AAPL": {{Indicator: "line", Zone: "bull", Op: "~=", Min: 1}},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

const sampleYAML = `
environment: test
server:
  port: 8080
  read_timeout: 10s
intake:
  backend: none
engine:
  timeframes: ["15m", "1h"]
  dedup:
    ttl: 30m
  aggregation:
    policy: majority
    min_confidence: 0.4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", c.Server.Port)
	}
	if c.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read_timeout = %v, want 10s", c.Server.ReadTimeout)
	}
	if c.Engine.Dedup.TTL != 30*time.Minute {
		t.Errorf("dedup ttl = %v, want 30m", c.Engine.Dedup.TTL)
	}
	if c.Engine.Aggregation.MinConfidence != 0.4 {
		t.Errorf("min_confidence = %v, want 0.4", c.Engine.Aggregation.MinConfidence)
	}
	if len(c.Engine.Timeframes) != 2 {
		t.Errorf("timeframes = %v, want 2 entries", c.Engine.Timeframes)
	}
}

func TestLoadFailures(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "{nope")); err == nil {
		t.Error("malformed yaml should fail")
	}
	if _, err := Load(writeConfig(t, "server:\n  port: 1\n")); err == nil {
		t.Error("config without environment should fail validation")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("INSTRUMENTS", "AAPL,MSFT")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.internal/finsignal")

	c, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(c.Kafka.Brokers, ","); got != "k1:9092,k2:9092" {
		t.Errorf("brokers = %q", got)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Errorf("redis override not applied: %+v", c.Redis)
	}
	if got := strings.Join(c.Intake.Instruments, ","); got != "AAPL,MSFT" {
		t.Errorf("instruments = %q", got)
	}
	if c.Notify.WebhookURL != "https://hooks.internal/finsignal" {
		t.Errorf("webhook = %q", c.Notify.WebhookURL)
	}
}
