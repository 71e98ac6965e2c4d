package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// ExchangeConfig points the market-data adapter at an exchange.
type ExchangeConfig struct {
	Name         string `yaml:"name"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	WSEndpoint   string `yaml:"ws_endpoint"`
}

// LedgerConfig mirrors the virtual account settings in the config file.
type LedgerConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	CommissionRate float64 `yaml:"commission_rate"`
	PointValue     float64 `yaml:"point_value"`
}

// ScheduleConfig holds the cron expressions driving the engine.
type ScheduleConfig struct {
	Evaluate    string `yaml:"evaluate"`
	Maintenance string `yaml:"maintenance"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the application configuration loaded from YAML.
type Config struct {
	Exchange    ExchangeConfig `yaml:"exchange"`
	Instruments []string       `yaml:"instruments"`
	Interval    string         `yaml:"interval"`
	Lookback    int            `yaml:"lookback"`
	Mode        string         `yaml:"mode"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	Ledger      LedgerConfig   `yaml:"ledger"`
	Server      ServerConfig   `yaml:"server"`
	Logging     LoggingConfig  `yaml:"logging"`
	Storage     StorageConfig  `yaml:"storage"`

	StrategyDefaults yaml.Node            `yaml:"strategy_defaults"`
	Strategies       map[string]yaml.Node `yaml:"strategies"`
}

// Load reads, parses and validates the configuration. Any invalid value
// fails here, before anything starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		Interval: "5",
		Lookback: 200,
		Mode:     "live",
		Schedule: ScheduleConfig{
			Evaluate:    "@every 30s",
			Maintenance: "@every 5m",
		},
		Ledger: LedgerConfig{
			InitialBalance: 100000,
			MaxDrawdownPct: 25,
			CommissionRate: 0.0005,
			PointValue:     1,
		},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{Path: "engine.db"},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments must not be empty")
	}
	if c.Interval == "" {
		return fmt.Errorf("interval must not be empty")
	}
	if c.Lookback < 50 {
		return fmt.Errorf("lookback must be at least 50, got %d", c.Lookback)
	}
	if c.Ledger.InitialBalance <= 0 {
		return fmt.Errorf("ledger.initial_balance must be positive, got %f", c.Ledger.InitialBalance)
	}
	if c.Ledger.MaxDrawdownPct <= 0 || c.Ledger.MaxDrawdownPct > 100 {
		return fmt.Errorf("ledger.max_drawdown_pct must be in (0, 100], got %f", c.Ledger.MaxDrawdownPct)
	}
	if c.Ledger.CommissionRate < 0 {
		return fmt.Errorf("ledger.commission_rate must not be negative, got %f", c.Ledger.CommissionRate)
	}
	if c.Ledger.PointValue <= 0 {
		return fmt.Errorf("ledger.point_value must be positive, got %f", c.Ledger.PointValue)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port, got %d", c.Server.Port)
	}

	// Strategy sections are validated eagerly so a typo in an override
	// cannot surface mid-run.
	store, err := c.StrategyStore()
	if err != nil {
		return err
	}
	if _, err := store.LoadStrategyConfig(""); err != nil {
		return fmt.Errorf("strategy_defaults: %w", err)
	}
	for _, instrument := range c.Instruments {
		if _, err := store.LoadStrategyConfig(instrument); err != nil {
			return err
		}
	}
	return nil
}

// StrategyStore builds the per-instrument strategy configuration store
// from the defaults and overrides sections.
func (c *Config) StrategyStore() (*StrategyStore, error) {
	defaults := domain.DefaultStrategyConfig()
	if c.StrategyDefaults.Kind != 0 {
		if err := c.StrategyDefaults.Decode(defaults); err != nil {
			return nil, fmt.Errorf("parse strategy_defaults: %w", err)
		}
	}
	return &StrategyStore{defaults: defaults, overrides: c.Strategies}, nil
}

// StrategyStore resolves strategy parameters per instrument: the global
// defaults with any instrument-specific overrides layered on top.
type StrategyStore struct {
	defaults  *domain.StrategyConfig
	overrides map[string]yaml.Node
}

// NewStrategyStore returns a store that serves the given configuration
// for every instrument. Used by tests and the one-shot CLI.
func NewStrategyStore(cfg *domain.StrategyConfig) *StrategyStore {
	return &StrategyStore{defaults: cfg}
}

func (s *StrategyStore) LoadStrategyConfig(instrument string) (*domain.StrategyConfig, error) {
	cfg := *s.defaults
	if node, ok := s.overrides[instrument]; ok {
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse strategy overrides for %s: %w", instrument, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config for %q: %w", instrument, err)
	}
	return &cfg, nil
}
