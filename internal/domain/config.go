package domain

import "fmt"

type ExecutionMode string

const (
	ModeLimit    ExecutionMode = "LIMIT"
	ModeBreakout ExecutionMode = "BREAKOUT"
)

type ATRMode string

const (
	ATRWilder ATRMode = "wilder"
	ATRSimple ATRMode = "sma"
)

// StrategyConfig holds every tunable of one instrument's strategy.
// It is immutable during an evaluation and validated at load time.
type StrategyConfig struct {
	ATRPeriod int     `yaml:"atr_period"`
	ATRMode   ATRMode `yaml:"atr_mode"`
	RSIPeriod int     `yaml:"rsi_period"`
	EMAPeriod int     `yaml:"ema_period"`
	ADXPeriod int     `yaml:"adx_period"`

	LevelDepth       int     `yaml:"level_depth"`
	LevelMinStrength float64 `yaml:"level_min_strength"`
	LevelDecayDays   float64 `yaml:"level_decay_days"`
	MaxLevels        int     `yaml:"max_levels"`

	RadiusFactor         float64 `yaml:"radius_factor"`
	MinPotentialStrength float64 `yaml:"min_potential_strength"`
	BuyMultiplier        float64 `yaml:"buy_multiplier"`
	SellMultiplier       float64 `yaml:"sell_multiplier"`
	BuyRSIThreshold      float64 `yaml:"buy_rsi_threshold"`
	SellRSIThreshold     float64 `yaml:"sell_rsi_threshold"`

	RiskPercent       float64 `yaml:"risk_percent"`
	StopATRMultiple   float64 `yaml:"stop_atr_multiple"`
	TargetATRMultiple float64 `yaml:"target_atr_multiple"`
	DynamicSizing     bool    `yaml:"dynamic_sizing"`
	BaseSize          float64 `yaml:"base_size"`
	MinSize           float64 `yaml:"min_size"`
	MaxSize           float64 `yaml:"max_size"`
	TickValue         float64 `yaml:"tick_value"`

	VolatilityFilter bool    `yaml:"volatility_filter"`
	MaxATRMultiplier float64 `yaml:"max_atr_multiplier"`
	TimeFilter       bool    `yaml:"time_filter"`
	VolumeFilter     bool    `yaml:"volume_filter"`
	MinVolumeRatio   float64 `yaml:"min_volume_ratio"`

	Mode ExecutionMode `yaml:"mode"`
}

// DefaultStrategyConfig returns the documented defaults.
func DefaultStrategyConfig() *StrategyConfig {
	return &StrategyConfig{
		ATRPeriod:            14,
		ATRMode:              ATRWilder,
		RSIPeriod:            14,
		EMAPeriod:            20,
		ADXPeriod:            14,
		LevelDepth:           10,
		LevelMinStrength:     0.0001,
		LevelDecayDays:       7,
		MaxLevels:            60,
		RadiusFactor:         3.0,
		MinPotentialStrength: 0.6,
		BuyMultiplier:        1.0,
		SellMultiplier:       1.0,
		BuyRSIThreshold:      40,
		SellRSIThreshold:     60,
		RiskPercent:          1.0,
		StopATRMultiple:      1.5,
		TargetATRMultiple:    3.0,
		DynamicSizing:        true,
		BaseSize:             1.0,
		MinSize:              0.01,
		MaxSize:              10,
		TickValue:            1.0,
		VolatilityFilter:     true,
		MaxATRMultiplier:     2.5,
		TimeFilter:           true,
		VolumeFilter:         false,
		MinVolumeRatio:       0.5,
		Mode:                 ModeLimit,
	}
}

// Validate fails fast on configs that would make an evaluation cycle
// meaningless. A failed validation is fatal for that instrument only.
func (c *StrategyConfig) Validate() error {
	if c.ATRPeriod <= 0 || c.RSIPeriod <= 0 || c.EMAPeriod <= 0 || c.ADXPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive (atr=%d rsi=%d ema=%d adx=%d)",
			c.ATRPeriod, c.RSIPeriod, c.EMAPeriod, c.ADXPeriod)
	}
	if c.ATRMode != ATRWilder && c.ATRMode != ATRSimple {
		return fmt.Errorf("unknown atr_mode %q", c.ATRMode)
	}
	if c.LevelDepth <= 0 {
		return fmt.Errorf("level_depth must be positive, got %d", c.LevelDepth)
	}
	if c.LevelDecayDays <= 0 {
		return fmt.Errorf("level_decay_days must be positive, got %f", c.LevelDecayDays)
	}
	if c.MaxLevels <= 0 {
		return fmt.Errorf("max_levels must be positive, got %d", c.MaxLevels)
	}
	if c.RadiusFactor <= 0 || c.MinPotentialStrength <= 0 {
		return fmt.Errorf("radius_factor and min_potential_strength must be positive")
	}
	if c.BuyMultiplier <= 0 || c.SellMultiplier <= 0 {
		return fmt.Errorf("buy/sell multipliers must be positive")
	}
	if c.BuyRSIThreshold <= 0 || c.BuyRSIThreshold >= 100 ||
		c.SellRSIThreshold <= 0 || c.SellRSIThreshold >= 100 {
		return fmt.Errorf("RSI thresholds must be within (0, 100)")
	}
	if c.RiskPercent <= 0 || c.RiskPercent > 100 {
		return fmt.Errorf("risk_percent must be within (0, 100], got %f", c.RiskPercent)
	}
	if c.StopATRMultiple <= 0 || c.TargetATRMultiple <= 0 {
		return fmt.Errorf("stop/target ATR multiples must be positive")
	}
	if c.BaseSize <= 0 || c.MinSize <= 0 || c.MaxSize < c.MinSize {
		return fmt.Errorf("invalid size bounds (base=%f min=%f max=%f)", c.BaseSize, c.MinSize, c.MaxSize)
	}
	if c.TickValue <= 0 {
		return fmt.Errorf("tick_value must be positive, got %f", c.TickValue)
	}
	if c.VolatilityFilter && c.MaxATRMultiplier <= 0 {
		return fmt.Errorf("max_atr_multiplier must be positive when the volatility filter is enabled")
	}
	if c.VolumeFilter && c.MinVolumeRatio <= 0 {
		return fmt.Errorf("min_volume_ratio must be positive when the volume filter is enabled")
	}
	if c.Mode != ModeLimit && c.Mode != ModeBreakout {
		return fmt.Errorf("unknown execution mode %q", c.Mode)
	}
	return nil
}
