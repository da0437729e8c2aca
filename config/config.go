// Package config loads the trader's settings from YAML or JSON, with .env
// and SWING_* environment overrides.
//
// Risk limits have no defaults on load: a file that leaves one out is
// rejected rather than traded with a guessed value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"github.com/rustyeddy/swingtrader/strategies"
	"gopkg.in/yaml.v3"
)

const DateLayout = "2006-01-02"

// Config is the complete process configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	LogLevel string         `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// AccountConfig describes the paper account.
type AccountConfig struct {
	StartingEquity float64 `json:"starting_equity" yaml:"starting_equity"`
	StateFile      string  `json:"state_file,omitempty" yaml:"state_file,omitempty"`
}

// RiskConfig holds the seven required risk options. Pointers tell a missing
// option apart from an explicit zero.
type RiskConfig struct {
	MaxPositions       *int     `json:"max_positions" yaml:"max_positions"`
	MaxPositionSizePct *float64 `json:"max_position_size_pct" yaml:"max_position_size_pct"`
	MaxRiskPerTradePct *float64 `json:"max_risk_per_trade_pct" yaml:"max_risk_per_trade_pct"`
	MinPrice           *float64 `json:"min_price" yaml:"min_price"`
	MinAvgDollarVolume *float64 `json:"min_avg_dollar_volume" yaml:"min_avg_dollar_volume"`
	SlippagePct        *float64 `json:"slippage_pct" yaml:"slippage_pct"`
	CommissionPerTrade *float64 `json:"commission_per_trade" yaml:"commission_per_trade"`
}

// StrategyConfig selects a strategy and its parameters.
type StrategyConfig struct {
	Name              string `json:"name" yaml:"name"`
	strategies.Params `yaml:",inline"`
}

// DataConfig locates bar files and the trading universe.
type DataConfig struct {
	Dir       string   `json:"dir" yaml:"dir"`
	Timeframe string   `json:"timeframe" yaml:"timeframe"`
	Symbols   []string `json:"symbols" yaml:"symbols"`
	Start     string   `json:"start,omitempty" yaml:"start,omitempty"`
	End       string   `json:"end,omitempty" yaml:"end,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// BacktestConfig are replay-only options.
type BacktestConfig struct {
	CloseAtEnd bool   `json:"close_at_end" yaml:"close_at_end"`
	Seed       int64  `json:"seed" yaml:"seed"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// base carries every default that is not a risk limit.
func base() *Config {
	return &Config{
		Account:  AccountConfig{StartingEquity: 100_000},
		Strategy: StrategyConfig{Name: strategies.MomentumName, Params: strategies.DefaultParams()},
		Data:     DataConfig{Dir: "data", Timeframe: market.D1},
		Journal:  JournalConfig{Type: "sqlite", DBPath: "journal/trader.db"},
		LogLevel: "info",
	}
}

// Default returns a complete configuration, risk limits included. It is
// what `config init` writes; loading never falls back to it.
func Default() *Config {
	c := base()
	c.Risk = RiskConfig{
		MaxPositions:       ptr(2),
		MaxPositionSizePct: ptr(0.30),
		MaxRiskPerTradePct: ptr(0.01),
		MinPrice:           ptr(2.0),
		MinAvgDollarVolume: ptr(1_000_000.0),
		SlippagePct:        ptr(0.001),
		CommissionPerTrade: ptr(0.0),
	}
	c.Data.Symbols = []string{"AAPL", "MSFT", "NVDA"}
	return c
}

func ptr[T any](v T) *T { return &v }

// Load reads .env from envFile when it exists, then path, then applies
// SWING_* overrides and validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, or JSON as fallback)
// without consulting the environment.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := base()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = base()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks that every required option is present and in range.
func (c *Config) Validate() error {
	if c.Account.StartingEquity <= 0 {
		return fmt.Errorf("account.starting_equity must be positive")
	}

	r := c.Risk
	required := []struct {
		name    string
		missing bool
	}{
		{"max_positions", r.MaxPositions == nil},
		{"max_position_size_pct", r.MaxPositionSizePct == nil},
		{"max_risk_per_trade_pct", r.MaxRiskPerTradePct == nil},
		{"min_price", r.MinPrice == nil},
		{"min_avg_dollar_volume", r.MinAvgDollarVolume == nil},
		{"slippage_pct", r.SlippagePct == nil},
		{"commission_per_trade", r.CommissionPerTrade == nil},
	}
	for _, f := range required {
		if f.missing {
			return fmt.Errorf("risk.%s is required", f.name)
		}
	}
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("risk.%w", err)
	}

	if _, err := c.NewStrategy(); err != nil {
		return err
	}
	if _, err := market.TimeframeDuration(c.Data.Timeframe); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for csv type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	return nil
}

// Limits returns the risk limits as an immutable value. Call Validate
// first; missing options read as zero.
func (c *Config) Limits() risk.Limits {
	r := c.Risk
	return risk.Limits{
		MaxPositions:       deref(r.MaxPositions),
		MaxPositionPct:     deref(r.MaxPositionSizePct),
		MaxRiskPct:         deref(r.MaxRiskPerTradePct),
		MinPrice:           deref(r.MinPrice),
		MinAvgDollarVolume: deref(r.MinAvgDollarVolume),
		SlippagePct:        deref(r.SlippagePct),
		CommissionPerTrade: deref(r.CommissionPerTrade),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// NewStrategy builds the configured strategy.
func (c *Config) NewStrategy() (strategies.Strategy, error) {
	s, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	return s, nil
}

// Range parses data.start and data.end. Empty values are unbounded.
func (c *Config) Range() (start, end time.Time, err error) {
	if c.Data.Start != "" {
		if start, err = time.Parse(DateLayout, c.Data.Start); err != nil {
			return start, end, fmt.Errorf("data.start: %w", err)
		}
	}
	if c.Data.End != "" {
		if end, err = time.Parse(DateLayout, c.Data.End); err != nil {
			return start, end, fmt.Errorf("data.end: %w", err)
		}
		// inclusive of the whole end day
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("data.end %s before data.start %s", c.Data.End, c.Data.Start)
	}
	return start, end, nil
}

// env overrides, applied after the file is parsed.
const (
	EnvMaxPositions       = "SWING_MAX_POSITIONS"
	EnvMaxPositionSizePct = "SWING_MAX_POSITION_SIZE_PCT"
	EnvMaxRiskPerTradePct = "SWING_MAX_RISK_PER_TRADE_PCT"
	EnvMinPrice           = "SWING_MIN_PRICE"
	EnvMinAvgDollarVolume = "SWING_MIN_AVG_DOLLAR_VOLUME"
	EnvSlippagePct        = "SWING_SLIPPAGE_PCT"
	EnvCommissionPerTrade = "SWING_COMMISSION_PER_TRADE"
	EnvStartingEquity     = "SWING_STARTING_EQUITY"
	EnvDataDir            = "SWING_DATA_DIR"
	EnvSymbols            = "SWING_SYMBOLS"
	EnvJournalDB          = "SWING_JOURNAL_DB"
	EnvLogLevel           = "SWING_LOG_LEVEL"
)

func (c *Config) applyEnv() error {
	floats := []struct {
		key string
		dst **float64
	}{
		{EnvMaxPositionSizePct, &c.Risk.MaxPositionSizePct},
		{EnvMaxRiskPerTradePct, &c.Risk.MaxRiskPerTradePct},
		{EnvMinPrice, &c.Risk.MinPrice},
		{EnvMinAvgDollarVolume, &c.Risk.MinAvgDollarVolume},
		{EnvSlippagePct, &c.Risk.SlippagePct},
		{EnvCommissionPerTrade, &c.Risk.CommissionPerTrade},
	}
	for _, f := range floats {
		v, ok := os.LookupEnv(f.key)
		if !ok {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = &x
	}

	if v, ok := os.LookupEnv(EnvMaxPositions); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxPositions, err)
		}
		c.Risk.MaxPositions = &n
	}
	if v, ok := os.LookupEnv(EnvStartingEquity); ok {
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStartingEquity, err)
		}
		c.Account.StartingEquity = x
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvSymbols); v != "" {
		c.Data.Symbols = SplitSymbols(v)
	}
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// SplitSymbols parses a comma or space separated symbol list, upper-cased
// and de-duplicated in input order.
func SplitSymbols(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' }) {
		sym := strings.ToUpper(f)
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}
