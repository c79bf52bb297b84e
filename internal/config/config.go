package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"fudata/pkg/contracts/domain"
)

// Config is the complete pipeline configuration, loaded once at startup and
// validated before anything else runs. No runtime shape surprises: every
// field is named, typed and defaulted here.
type Config struct {
	Runtime   RuntimeConfig   `yaml:"runtime" envconfig:"RUNTIME"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Windows   WindowsConfig   `yaml:"windows" envconfig:"WINDOWS"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
}

// RuntimeConfig locates the partitioned store.
type RuntimeConfig struct {
	StorageRoot string `yaml:"storage_root" envconfig:"STORAGE_ROOT" default:"data" validate:"required"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/fudata.log"`
}

// SourceConfig describes one upstream vendor source.
type SourceConfig struct {
	URLPattern    string              `yaml:"url_pattern" envconfig:"URL_PATTERN"`
	Retries       int                 `yaml:"retries" envconfig:"RETRIES" default:"3" validate:"min=0,max=10"`
	Timeout       time.Duration       `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	RateLimit     float64             `yaml:"rate_limit" envconfig:"RATE_LIMIT" default:"1"`
	ColumnAliases map[string][]string `yaml:"column_aliases" envconfig:"-"`
}

// SourcesConfig groups the two vendor extracts feeding the silver layer.
type SourcesConfig struct {
	UDiFF SourceConfig `yaml:"udiff_fo" envconfig:"UDIFF"`
	MWPL  SourceConfig `yaml:"mwpl_combined" envconfig:"MWPL"`
}

// WindowsConfig holds the summary-scope policy: which window start bounds a
// monthly summary.
type WindowsConfig struct {
	SummaryScope string `yaml:"summary_scope" envconfig:"SUMMARY_SCOPE" default:"primary" validate:"oneof=primary overlap"`
}

// ServerConfig configures the read-only HTTP surface.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SchedulerConfig configures the daily cron run.
type SchedulerConfig struct {
	Enabled  bool     `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	CronSpec string   `yaml:"cron_spec" envconfig:"CRON_SPEC" default:"30 18 * * 1-5"`
	Symbols  []string `yaml:"symbols" envconfig:"SYMBOLS"`
}

// Scope returns the configured summary scope as a domain value.
func (w WindowsConfig) Scope() domain.SummaryScope {
	if w.SummaryScope == "overlap" {
		return domain.ScopeOverlap
	}
	return domain.ScopePrimary
}

// Load builds the configuration from environment variables, then overlays an
// optional YAML file, then validates the result.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FUDATA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile == "" {
		configFile = os.Getenv("FUDATA_CONFIG_FILE")
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, &cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays YAML values onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDefaults fills the alias tables that cannot be expressed as struct
// tag defaults. The vendor headers drift across years; the canonical names
// stay fixed.
func applyDefaults(cfg *Config) {
	if cfg.Sources.UDiFF.ColumnAliases == nil {
		cfg.Sources.UDiFF.ColumnAliases = DefaultUDiFFAliases()
	}
	if cfg.Sources.MWPL.ColumnAliases == nil {
		cfg.Sources.MWPL.ColumnAliases = DefaultMWPLAliases()
	}
	if cfg.Sources.UDiFF.URLPattern == "" {
		cfg.Sources.UDiFF.URLPattern = "https://nsearchives.nseindia.com/content/fo/BhavCopy_NSE_FO_0_0_0_{YYYY}{MM}{DD}_F_0000.csv.zip"
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	return nil
}

// DefaultUDiFFAliases maps canonical silver columns to the UDiFF bhavcopy
// header variants observed in production files.
func DefaultUDiFFAliases() map[string][]string {
	return map[string][]string{
		"trade_date":              {"TradDt", "BizDt", "TRADE_DATE"},
		"instrument":              {"FinInstrmTp", "INSTRUMENT"},
		"symbol":                  {"TckrSymb", "FinInstrmId", "SYMBOL"},
		"expiry_date":             {"FininstrmActlXpryDt", "XpryDt", "EXPIRY_DT"},
		"open":                    {"OpnPric", "OPEN"},
		"high":                    {"HghPric", "HIGH"},
		"low":                     {"LwPric", "LOW"},
		"close":                   {"ClsPric", "CLOSE"},
		"settle_price":            {"SttlmPric", "SETTLE_PR"},
		"contracts":               {"TtlTradgVol", "CONTRACTS"},
		"value_lakhs":             {"TtlTrfVal", "VAL_INLAKH"},
		"open_interest_contracts": {"OpnIntrst", "OPEN_INT"},
		"lot_size_shares":         {"NewBrdLotQty", "LotSize", "MARKET_LOT"},
		"change_in_oi_contracts":  {"ChngInOpnIntrst", "CHG_IN_OI"},
	}
}

// DefaultMWPLAliases maps canonical position-limit columns to the combined
// OI report header variants.
func DefaultMWPLAliases() map[string][]string {
	return map[string][]string{
		"trade_date":         {"Date", "TRADE_DATE"},
		"symbol":             {"Scrip Name", "Symbol", "SYMBOL"},
		"mwpl_shares":        {"MWPL", "MWPL_SHARES"},
		"combined_oi_shares": {"Open Interest", "Combined OI", "COMBINED_OI"},
	}
}
