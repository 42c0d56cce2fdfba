package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	_ "time/tzdata"
)

// DefaultSymbols is the universe tracked when none is configured.
var DefaultSymbols = []string{
	"NVDA", "TSLA", "AAPL", "MSFT", "GOOGL", "AMZN", "AUR",
	"PLTR", "SMCI", "TSM", "MP", "SMR", "SPY",
}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider  string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo prediction_api mock"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
		RangeDays int           `yaml:"range_days" default:"30" validate:"gte=2,lte=3650"`
		MockPrice float64       `yaml:"mock_price" default:"100" validate:"gt=0"`
	} `yaml:"data_source"`
	PredictionAPI struct {
		BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"30s"`
		// Calls per second against the prediction and data services.
		RateLimit float64 `yaml:"rate_limit" default:"5" validate:"gt=0"`
		Burst     int     `yaml:"burst" default:"1" validate:"gte=1"`
	} `yaml:"prediction_api"`
	Schedule struct {
		Enabled   bool   `yaml:"enabled" default:"true"`
		DailyCron string `yaml:"daily_cron" default:"0 0 1 * * 2-6"`
		Timezone  string `yaml:"timezone" default:"America/New_York"`
	} `yaml:"schedule"`
	Tracker struct {
		Symbols      []string `yaml:"symbols" validate:"dive,required,uppercase"`
		HoldBand     float64  `yaml:"hold_band" default:"0.001" validate:"gt=0,lt=1"`
		HistoryLimit int      `yaml:"history_limit" default:"100" validate:"gte=1"`
		MinSettled   int      `yaml:"min_settled" default:"5" validate:"gte=1"`
		RunOnStart   bool     `yaml:"run_on_start"`
	} `yaml:"tracker"`
	Calendar struct {
		// Unscheduled market closures keyed by YYYY-MM-DD.
		Closures map[string]string `yaml:"closures"`
	} `yaml:"calendar"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/prediction_ledger.db"`
	} `yaml:"database"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token" validate:"required_if=Enabled true"`
		ChatID   string `yaml:"chat_id" validate:"required_if=Enabled true"`
	} `yaml:"telegram"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9090"`
		Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load applies defaults, then the YAML file, then .env and environment
// variable overrides, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if len(cfg.Tracker.Symbols) == 0 {
		cfg.Tracker.Symbols = append([]string(nil), DefaultSymbols...)
	}
	for i, s := range cfg.Tracker.Symbols {
		cfg.Tracker.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
		cfg.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("PREDICTION_API_URL"); v != "" {
		cfg.PredictionAPI.BaseURL = v
	}
	if v := os.Getenv("PREDICTION_API_KEY"); v != "" {
		cfg.PredictionAPI.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SCHEDULE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Schedule.Enabled = b
		}
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Tracker.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracker.RunOnStart = b
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
}

var validate = validator.New()

// cronParser accepts the six-field (seconds first) specs the scheduler uses.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks field constraints, the cron spec and the timezone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DataSource.Provider != "mock" && c.PredictionAPI.BaseURL == "" {
		return fmt.Errorf("prediction_api.base_url is required")
	}
	if _, err := cronParser.Parse(c.Schedule.DailyCron); err != nil {
		return fmt.Errorf("schedule.daily_cron %q: %w", c.Schedule.DailyCron, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	if _, err := c.MarketClosures(); err != nil {
		return err
	}
	return nil
}

// MarketClosures parses calendar.closures into dates.
func (c *Config) MarketClosures() (map[time.Time]string, error) {
	out := make(map[time.Time]string, len(c.Calendar.Closures))
	for day, name := range c.Calendar.Closures {
		d, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return nil, fmt.Errorf("calendar.closures %q: %w", day, err)
		}
		out[d] = name
	}
	return out, nil
}

// Location returns the schedule's time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}

// DailySchedule parses the daily cron spec in the configured time zone.
func (c *Config) DailySchedule() (cron.Schedule, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return cronParser.Parse("CRON_TZ=" + loc.String() + " " + c.Schedule.DailyCron)
}
