package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ThresholdRow is one zone bucket definition inside the thresholds tree.
// Bound usage by op: ">"/">=" read min, "<"/"<=" read max, "between" reads
// both (inclusive).
type ThresholdRow struct {
	TF        string  `yaml:"tf"`
	Indicator string  `yaml:"indicator"`
	Zone      string  `yaml:"zone"`
	Op        string  `yaml:"op"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Intake struct {
		Backend     string   `yaml:"backend"` // "kafka", "websocket" or "none"
		Instruments []string `yaml:"instruments"`
	} `yaml:"intake"`
	Notify struct {
		Backend       string        `yaml:"backend"` // "kafka", "queue" or "none"
		WebhookURL    string        `yaml:"webhook_url"`
		Workers       int           `yaml:"workers"`
		RatePerMinute int           `yaml:"rate_per_minute"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"notify"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		ReadingsTopic string   `yaml:"readings_topic"`
		SignalsTopic  string   `yaml:"signals_topic"`
		LogsTopic     string   `yaml:"logs_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID         string        `yaml:"group_id"`
			AutoOffsetReset string        `yaml:"auto_offset_reset"`
			Workers         int           `yaml:"workers"`
			BufferSize      int           `yaml:"buffer_size"`
			RetryMax        int           `yaml:"retry_max"`
			BackoffMin      time.Duration `yaml:"backoff_min"`
			BackoffMax      time.Duration `yaml:"backoff_max"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes"`
			MaxBytes        int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Feed struct {
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Cache struct {
		Backend     string        `yaml:"backend"` // "memory", "redis" or "layered"
		ResponseTTL time.Duration `yaml:"response_ttl"`
	} `yaml:"cache"`
	Engine struct {
		Timeframes      []string `yaml:"timeframes"`
		MomentumEnabled bool     `yaml:"momentum_enabled"`
		Trend           struct {
			SpreadNorm float64 `yaml:"spread_norm"`
		} `yaml:"trend"`
		Combine struct {
			WeakDisagreementRatio float64 `yaml:"weak_disagreement_ratio"`
		} `yaml:"combine"`
		Aggregation struct {
			Policy        string  `yaml:"policy"` // "majority" or "unanimous"
			MinConfidence float64 `yaml:"min_confidence"`
		} `yaml:"aggregation"`
		Dedup struct {
			TTL        time.Duration `yaml:"ttl"`
			Backend    string        `yaml:"backend"` // "memory" or "redis"
			FailClosed bool          `yaml:"fail_closed"`
			MaxEntries int           `yaml:"max_entries"`
		} `yaml:"dedup"`
		ZoneOrder []string `yaml:"zone_order"`
		Markets   struct {
			Default   string            `yaml:"default"`
			Overrides map[string]string `yaml:"overrides"`
		} `yaml:"markets"`
		Thresholds struct {
			Source      string                    `yaml:"source"` // "config" or "clickhouse"
			CacheTTL    time.Duration             `yaml:"cache_ttl"`
			Markets     map[string][]ThresholdRow `yaml:"markets"`
			Instruments map[string][]ThresholdRow `yaml:"instruments"`
		} `yaml:"thresholds"`
	} `yaml:"engine"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("INTAKE_BACKEND"); v != "" {
		c.Intake.Backend = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Intake.Instruments = strings.Split(v, ",")
	}
	if v := os.Getenv("NOTIFY_BACKEND"); v != "" {
		c.Notify.Backend = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_READINGS_TOPIC"); v != "" {
		c.Kafka.ReadingsTopic = v
	}
	if v := os.Getenv("KAFKA_SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("KAFKA_LOGS_TOPIC"); v != "" {
		c.Kafka.LogsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}

	return c, nil
}

var validTimeframes = map[string]bool{"15m": true, "30m": true, "1h": true, "4h": true, "1d": true}

// Validate checks if the configuration is valid. Structural threshold checks
// happen here; semantic overlap validation runs when the threshold source is
// built, still before the engine serves its first evaluation.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Intake.Backend {
	case "", "none", "kafka", "websocket":
	default:
		return fmt.Errorf("intake.backend must be 'kafka', 'websocket' or 'none', got '%s'", c.Intake.Backend)
	}
	if c.Intake.Backend == "kafka" || c.Intake.Backend == "websocket" {
		if len(c.Intake.Instruments) == 0 {
			return fmt.Errorf("intake.instruments cannot be empty when intake is enabled")
		}
	}
	switch c.Kafka.Consumer.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("kafka.consumer.auto_offset_reset must be 'earliest' or 'latest', got '%s'", c.Kafka.Consumer.AutoOffsetReset)
	}
	switch c.Notify.Backend {
	case "", "none", "kafka", "queue":
	default:
		return fmt.Errorf("notify.backend must be 'kafka', 'queue' or 'none', got '%s'", c.Notify.Backend)
	}
	if c.Notify.Backend == "queue" && !c.Redis.Enabled {
		return fmt.Errorf("notify.backend 'queue' requires redis to be enabled")
	}
	switch c.Engine.Aggregation.Policy {
	case "", "majority", "unanimous":
	default:
		return fmt.Errorf("engine.aggregation.policy must be 'majority' or 'unanimous', got '%s'", c.Engine.Aggregation.Policy)
	}
	switch c.Engine.Dedup.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("engine.dedup.backend must be 'memory' or 'redis', got '%s'", c.Engine.Dedup.Backend)
	}
	if c.Engine.Dedup.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("engine.dedup.backend 'redis' requires redis to be enabled")
	}
	switch c.Engine.Thresholds.Source {
	case "", "config", "clickhouse":
	default:
		return fmt.Errorf("engine.thresholds.source must be 'config' or 'clickhouse', got '%s'", c.Engine.Thresholds.Source)
	}
	for _, tf := range c.Engine.Timeframes {
		if !validTimeframes[tf] {
			return fmt.Errorf("engine.timeframes: unsupported timeframe '%s'", tf)
		}
	}
	for market, rows := range c.Engine.Thresholds.Markets {
		if err := validateRows("markets."+market, rows); err != nil {
			return err
		}
	}
	for instrument, rows := range c.Engine.Thresholds.Instruments {
		if err := validateRows("instruments."+instrument, rows); err != nil {
			return err
		}
	}
	return nil
}

func validateRows(owner string, rows []ThresholdRow) error {
	for i, r := range rows {
		if r.Zone == "" {
			return fmt.Errorf("engine.thresholds.%s[%d]: zone is required", owner, i)
		}
		if r.Indicator == "" {
			return fmt.Errorf("engine.thresholds.%s[%d]: indicator is required", owner, i)
		}
		if r.TF != "" && !validTimeframes[r.TF] {
			return fmt.Errorf("engine.thresholds.%s[%d]: unsupported timeframe '%s'", owner, i, r.TF)
		}
		switch r.Op {
		case ">", ">=", "<", "<=", "between":
		default:
			return fmt.Errorf("engine.thresholds.%s[%d]: unknown op '%s'", owner, i, r.Op)
		}
	}
	return nil
}
