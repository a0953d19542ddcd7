package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Config is the full auction server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Auction AuctionConfig `yaml:"auction"`
}

// ServerConfig controls the WebSocket transport.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	BidDebounce      time.Duration `yaml:"bid_debounce"` // minimum gap between bids on one connection
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	SeedFiles        []string      `yaml:"seed_files"` // auctions created at startup unless stored
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	Driver          string        `yaml:"driver"` // sqlite | postgres | memory
	DSN             string        `yaml:"dsn"`    // SQLite path or postgres://...
	PersistAttempts int           `yaml:"persist_attempts"`
	PersistBackoff  time.Duration `yaml:"persist_backoff"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// AuctionConfig holds the default rules of every auction. Seeds may
// override any field.
type AuctionConfig struct {
	BasePrice           int64           `yaml:"base_price"`
	Purse               int64           `yaml:"purse"`
	MinSquad            int             `yaml:"min_squad"`
	MaxSquad            int             `yaml:"max_squad"`
	Increments          []IncrementTier `yaml:"increments"`
	Timers              TimersConfig    `yaml:"timers"`
	MaxConsecutiveUndos int             `yaml:"max_consecutive_undos"`
	TradeWindow         time.Duration   `yaml:"trade_window"`
	MaxTradesPerTeam    int             `yaml:"max_trades_per_team"`
	SettlementEnabled   bool            `yaml:"settlement_enabled"`
	MaxRounds           int             `yaml:"max_rounds"`
	AutoAdvance         bool            `yaml:"auto_advance"`
}

// IncrementTier: while the current bid is below Below, the step is Step.
// Below 0 on the last tier means no bound.
type IncrementTier struct {
	Below int64 `yaml:"below"`
	Step  int64 `yaml:"step"`
}

// TimersConfig holds the duration of each bidding phase.
type TimersConfig struct {
	Reveal       time.Duration `yaml:"reveal"`
	Open         time.Duration `yaml:"open"`
	BidReset     time.Duration `yaml:"bid_reset"`
	GoingOnce    time.Duration `yaml:"going_once"`
	GoingTwice   time.Duration `yaml:"going_twice"`
	Intermission time.Duration `yaml:"intermission"`
}

// Load reads the YAML file and the .env file if present.
// Values from .env override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := unsetConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Default returns the default configuration, without a file.
func Default() *Config {
	cfg := unsetConfig()
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// applyEnvOverrides replaces values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("AUCTION_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("AUCTION_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("AUCTION_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// unset marks fields where an explicit 0 is meaningful: min_squad 0 is no
// minimum and max_trades_per_team 0 is unlimited.
const unset = -1

func unsetConfig() Config {
	var cfg Config
	cfg.Auction.MinSquad = unset
	cfg.Auction.MaxTradesPerTeam = unset
	return cfg
}

// setDefaults fills required values left empty.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.BidDebounce <= 0 {
		cfg.Server.BidDebounce = 200 * time.Millisecond
	}
	if cfg.Server.SubscriberBuffer <= 0 {
		cfg.Server.SubscriberBuffer = 256
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "auctionroom.db"
	}
	if cfg.Storage.PersistAttempts <= 0 {
		cfg.Storage.PersistAttempts = 4
	}
	if cfg.Storage.PersistBackoff <= 0 {
		cfg.Storage.PersistBackoff = 100 * time.Millisecond
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	a := &cfg.Auction
	if a.BasePrice <= 0 {
		a.BasePrice = 100_000
	}
	if a.Purse <= 0 {
		a.Purse = 2_000_000
	}
	if a.MaxSquad <= 0 {
		a.MaxSquad = 25
	}
	if a.MinSquad < 0 {
		a.MinSquad = min(15, a.MaxSquad)
	}
	if len(a.Increments) == 0 {
		a.Increments = []IncrementTier{
			{Below: 1_000_000, Step: 50_000},
			{Below: 2_000_000, Step: 100_000},
			{Below: 0, Step: 250_000},
		}
	}
	t := &a.Timers
	if t.Reveal <= 0 {
		t.Reveal = 3 * time.Second
	}
	if t.Open <= 0 {
		t.Open = 15 * time.Second
	}
	if t.BidReset <= 0 {
		t.BidReset = 10 * time.Second
	}
	if t.GoingOnce <= 0 {
		t.GoingOnce = 3 * time.Second
	}
	if t.GoingTwice <= 0 {
		t.GoingTwice = 3 * time.Second
	}
	if t.Intermission <= 0 {
		t.Intermission = 5 * time.Second
	}
	if a.MaxConsecutiveUndos <= 0 {
		a.MaxConsecutiveUndos = domain.DefaultMaxConsecutiveUndos
	}
	if a.TradeWindow <= 0 {
		a.TradeWindow = 30 * time.Minute
	}
	if a.MaxTradesPerTeam < 0 {
		a.MaxTradesPerTeam = 2
	}
	if a.MaxRounds <= 0 {
		a.MaxRounds = domain.DefaultMaxRounds
	}
}

// Validate checks what setDefaults cannot fix.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if err := c.Auction.Domain().Validate(); err != nil {
		return fmt.Errorf("auction: %w", err)
	}
	return nil
}

// Domain converts the rules to the engine model.
func (a AuctionConfig) Domain() domain.Config {
	tiers := make([]domain.IncrementTier, len(a.Increments))
	for i, t := range a.Increments {
		tiers[i] = domain.IncrementTier{Below: t.Below, Step: t.Step}
	}
	return domain.Config{
		BasePrice:  a.BasePrice,
		Purse:      a.Purse,
		MinSquad:   a.MinSquad,
		MaxSquad:   a.MaxSquad,
		Increments: tiers,
		Timers: domain.Timers{
			Reveal:       a.Timers.Reveal,
			Open:         a.Timers.Open,
			BidReset:     a.Timers.BidReset,
			GoingOnce:    a.Timers.GoingOnce,
			GoingTwice:   a.Timers.GoingTwice,
			Intermission: a.Timers.Intermission,
		},
		MaxConsecutiveUndos: a.MaxConsecutiveUndos,
		TradeWindow:         a.TradeWindow,
		MaxTradesPerTeam:    a.MaxTradesPerTeam,
		SettlementEnabled:   a.SettlementEnabled,
		MaxRounds:           a.MaxRounds,
		AutoAdvance:         a.AutoAdvance,
	}.WithDefaults()
}
