package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Signals   SignalsConfig   `yaml:"signals" mapstructure:"signals"`
	Quick     QuickConfig     `yaml:"quick" mapstructure:"quick"`
	Decision  DecisionConfig  `yaml:"decision" mapstructure:"decision"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Triage    TriageConfig    `yaml:"triage" mapstructure:"triage"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional postgres connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// SignalsConfig configures the signal extractor.
type SignalsConfig struct {
	// CatalogPath optionally points at a YAML flag catalog; empty uses the
	// built-in default.
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// QuickConfig configures the quick scorer.
type QuickConfig struct {
	MediumRewardCents int64 `yaml:"medium_reward_cents" mapstructure:"medium_reward_cents"`
	HighRewardCents   int64 `yaml:"high_reward_cents" mapstructure:"high_reward_cents"`

	// GoProbability/CautionProbability are the go/no-go cutoffs. The
	// defaults (50/30) are intentionally permissive for a first-pass
	// filter; the decision engine applies the stricter history-aware gate
	// afterwards. Do not tighten these without product sign-off.
	GoProbability      int `yaml:"go_probability" mapstructure:"go_probability"`
	CautionProbability int `yaml:"caution_probability" mapstructure:"caution_probability"`
}

// DecisionConfig configures the decision engine. All tier boundaries,
// thresholds, and weights are configuration, not learned parameters.
type DecisionConfig struct {
	MinConfidence int `yaml:"min_confidence" mapstructure:"min_confidence"`

	// Value tier boundaries in cents, ascending.
	Tier1Cents int64 `yaml:"tier1_cents" mapstructure:"tier1_cents"`
	Tier2Cents int64 `yaml:"tier2_cents" mapstructure:"tier2_cents"`
	Tier3Cents int64 `yaml:"tier3_cents" mapstructure:"tier3_cents"`

	// Decision thresholds per value tier: higher value lowers the bar.
	Tier1Threshold float64 `yaml:"tier1_threshold" mapstructure:"tier1_threshold"`
	Tier2Threshold float64 `yaml:"tier2_threshold" mapstructure:"tier2_threshold"`
	Tier3Threshold float64 `yaml:"tier3_threshold" mapstructure:"tier3_threshold"`

	LowComplexityBonus    float64 `yaml:"low_complexity_bonus" mapstructure:"low_complexity_bonus"`
	HighComplexityPenalty float64 `yaml:"high_complexity_penalty" mapstructure:"high_complexity_penalty"`

	MinHistoryAttempts   int     `yaml:"min_history_attempts" mapstructure:"min_history_attempts"`
	HistoryWeight        float64 `yaml:"history_weight" mapstructure:"history_weight"`
	HistoryMaxAdjustment float64 `yaml:"history_max_adjustment" mapstructure:"history_max_adjustment"`

	RiskTolerance string `yaml:"risk_tolerance" mapstructure:"risk_tolerance"`
}

// AnalyticsConfig configures session analytics, the rough cost model, and
// bottleneck alerting.
type AnalyticsConfig struct {
	PerAttemptUSD   float64 `yaml:"per_attempt_usd" mapstructure:"per_attempt_usd"`
	BaselineMinutes float64 `yaml:"baseline_minutes" mapstructure:"baseline_minutes"`

	MaxAvgImplementationMinutes float64 `yaml:"max_avg_implementation_minutes" mapstructure:"max_avg_implementation_minutes"`
	MinSuccessRatePct           float64 `yaml:"min_success_rate_pct" mapstructure:"min_success_rate_pct"`
	MaxGateFailureRatePct       float64 `yaml:"max_gate_failure_rate_pct" mapstructure:"max_gate_failure_rate_pct"`

	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// TriageConfig configures the batch triage command.
type TriageConfig struct {
	MaxConcurrent int  `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	QuickFilter   bool `yaml:"quick_filter" mapstructure:"quick_filter"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOUNTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bounty.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("quick.medium_reward_cents", 50_000)
	v.SetDefault("quick.high_reward_cents", 100_000)
	v.SetDefault("quick.go_probability", 50)
	v.SetDefault("quick.caution_probability", 30)
	v.SetDefault("decision.min_confidence", 50)
	v.SetDefault("decision.tier1_cents", 10_000)
	v.SetDefault("decision.tier2_cents", 50_000)
	v.SetDefault("decision.tier3_cents", 100_000)
	v.SetDefault("decision.tier1_threshold", 60)
	v.SetDefault("decision.tier2_threshold", 55)
	v.SetDefault("decision.tier3_threshold", 50)
	v.SetDefault("decision.low_complexity_bonus", 5)
	v.SetDefault("decision.high_complexity_penalty", 10)
	v.SetDefault("decision.min_history_attempts", 3)
	v.SetDefault("decision.history_weight", 0.2)
	v.SetDefault("decision.history_max_adjustment", 10)
	v.SetDefault("decision.risk_tolerance", "moderate")
	v.SetDefault("analytics.per_attempt_usd", 1.50)
	v.SetDefault("analytics.baseline_minutes", 5)
	v.SetDefault("analytics.max_avg_implementation_minutes", 10)
	v.SetDefault("analytics.min_success_rate_pct", 50)
	v.SetDefault("analytics.max_gate_failure_rate_pct", 30)
	v.SetDefault("triage.max_concurrent", 4)
	v.SetDefault("triage.quick_filter", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if c.Quick.MediumRewardCents < 0 || c.Quick.HighRewardCents < 0 {
		errs = append(errs, "quick reward thresholds must be >= 0")
	}
	if c.Quick.HighRewardCents < c.Quick.MediumRewardCents {
		errs = append(errs, "quick.high_reward_cents must be >= quick.medium_reward_cents")
	}
	if c.Quick.GoProbability < 0 || c.Quick.GoProbability > 100 {
		errs = append(errs, "quick.go_probability must be between 0 and 100")
	}
	if c.Quick.CautionProbability < 0 || c.Quick.CautionProbability > c.Quick.GoProbability {
		errs = append(errs, "quick.caution_probability must be between 0 and quick.go_probability")
	}

	d := c.Decision
	if d.MinConfidence < 0 || d.MinConfidence > 100 {
		errs = append(errs, "decision.min_confidence must be between 0 and 100")
	}
	if !(d.Tier1Cents <= d.Tier2Cents && d.Tier2Cents <= d.Tier3Cents) {
		errs = append(errs, "decision value tiers must be ascending")
	}
	for name, th := range map[string]float64{
		"decision.tier1_threshold": d.Tier1Threshold,
		"decision.tier2_threshold": d.Tier2Threshold,
		"decision.tier3_threshold": d.Tier3Threshold,
	} {
		if th < 0 || th > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}
	if d.HistoryWeight < 0 || d.HistoryMaxAdjustment < 0 {
		errs = append(errs, "decision history weight and max adjustment must be >= 0")
	}
	if d.MinHistoryAttempts < 0 {
		errs = append(errs, "decision.min_history_attempts must be >= 0")
	}
	switch d.RiskTolerance {
	case "", "conservative", "moderate", "aggressive":
	default:
		errs = append(errs, fmt.Sprintf("unknown decision.risk_tolerance %q", d.RiskTolerance))
	}

	a := c.Analytics
	if a.PerAttemptUSD < 0 || a.BaselineMinutes < 0 {
		errs = append(errs, "analytics cost rates must be >= 0")
	}
	if math.IsNaN(a.MinSuccessRatePct) || a.MinSuccessRatePct < 0 || a.MinSuccessRatePct > 100 {
		errs = append(errs, "analytics.min_success_rate_pct must be between 0 and 100")
	}
	if a.MaxGateFailureRatePct < 0 || a.MaxGateFailureRatePct > 100 {
		errs = append(errs, "analytics.max_gate_failure_rate_pct must be between 0 and 100")
	}

	if c.Triage.MaxConcurrent < 1 {
		errs = append(errs, "triage.max_concurrent must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
