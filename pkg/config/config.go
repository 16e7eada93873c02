package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Pipeline struct {
		BufferCapacity  int           `yaml:"buffer_capacity"`
		MaxCandidateAge time.Duration `yaml:"max_candidate_age"`
		MaxRPS          float64       `yaml:"max_rps"`
		IngestBuffer    int           `yaml:"ingest_buffer"`
		Gates           struct {
			MinRawConfidence float64            `yaml:"min_raw_confidence"`
			Quality          float64            `yaml:"quality"`
			MLProbability    float64            `yaml:"ml_probability"`
			WinRate          float64            `yaml:"win_rate"`
			RequiredFeatures []string           `yaml:"required_features"`
			FeatureWeights   map[string]float64 `yaml:"feature_weights"`
		} `yaml:"gates"`
	} `yaml:"pipeline"`
	Scheduler struct {
		Tick time.Duration `yaml:"tick"`
	} `yaml:"scheduler"`
	Tiers map[string]TierConfig `yaml:"tiers"`
	Kafka struct {
		Brokers         []string `yaml:"brokers"`
		CandidatesTopic string   `yaml:"candidates_topic"`
		EventsTopic     string   `yaml:"events_topic"`
		LogsTopic       string   `yaml:"logs_topic"`
		RequiredAcks    int      `yaml:"required_acks"`
		Compression     string   `yaml:"compression"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
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
	Queue struct {
		Workers    int           `yaml:"workers"`
		Size       int           `yaml:"size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Collaborators struct {
		RegimeURL      string        `yaml:"regime_url"`
		PerformanceURL string        `yaml:"performance_url"`
		Timeout        time.Duration `yaml:"timeout"`
		CacheTTL       struct {
			Regime  time.Duration `yaml:"regime"`
			WinRate time.Duration `yaml:"win_rate"`
		} `yaml:"cache_ttl"`
	} `yaml:"collaborators"`
}

// TierConfig is the YAML shape of one tier policy.
type TierConfig struct {
	DropInterval time.Duration `yaml:"drop_interval"`
	DailyQuota   int           `yaml:"daily_quota"`
	SignalTTL    time.Duration `yaml:"signal_ttl"`
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
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CANDIDATES_TOPIC"); v != "" {
		c.Kafka.CandidatesTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REGIME_URL"); v != "" {
		c.Collaborators.RegimeURL = v
	}
	if v := os.Getenv("PERFORMANCE_URL"); v != "" {
		c.Collaborators.PerformanceURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.CandidatesTopic == "" {
		return fmt.Errorf("kafka.candidates_topic is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("tiers cannot be empty")
	}
	for name, t := range c.Tiers {
		if name != "FREE" && name != "PRO" && name != "MAX" {
			return fmt.Errorf("unknown tier '%s'", name)
		}
		if t.DropInterval <= 0 {
			return fmt.Errorf("tiers.%s.drop_interval must be positive", name)
		}
		if t.DailyQuota <= 0 {
			return fmt.Errorf("tiers.%s.daily_quota must be positive", name)
		}
	}
	return nil
}
