// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DLMM_LAUNCHER_CLUSTER.
const EnvPrefix = "DLMM_LAUNCHER"

type Config struct {
	RPCList         []string `mapstructure:"rpc_list"`
	WebSocketURL    string   `mapstructure:"websocket_url"`
	RPCRateLimit    int      `mapstructure:"rpc_rate_limit"`
	RPCTimeoutMs    int      `mapstructure:"rpc_timeout_ms"`
	Cluster         string   `mapstructure:"cluster"`
	KeypairPath     string   `mapstructure:"keypair_path"`
	RecipientWallet string   `mapstructure:"recipient_wallet"`
	PostgresURL     string   `mapstructure:"postgres_url"`

	Log              LogConfig              `mapstructure:"log"`
	BaseToken        TokenConfig            `mapstructure:"base_token"`
	QuoteToken       QuoteTokenConfig       `mapstructure:"quote_token"`
	RecipientFunding RecipientFundingConfig `mapstructure:"recipient_funding"`
	DLMM             DLMMConfig             `mapstructure:"dlmm"`
	Strategy         StrategyConfig         `mapstructure:"strategy"`
	Funding          FundingConfig          `mapstructure:"funding"`
	Resolver         ResolverConfig         `mapstructure:"resolver"`
	Toolkit          ToolkitConfig          `mapstructure:"toolkit"`
	Report           ReportConfig           `mapstructure:"report"`

	RPCTimeout time.Duration `mapstructure:"-"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
	MaxSize     int    `mapstructure:"max_size"`    // мегабайты
	MaxAge      int    `mapstructure:"max_age"`     // дни
	MaxBackups  int    `mapstructure:"max_backups"` // количество файлов
	Compress    bool   `mapstructure:"compress"`
}

// TokenConfig amounts are UI units as decimal strings, e.g. "1000000000".
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	Supply   string `mapstructure:"supply"`
}

type QuoteTokenConfig struct {
	TokenConfig `mapstructure:",squash"`
	// Mode is "create" (mock quote minted like the base) or "existing".
	Mode string `mapstructure:"mode"`
	Mint string `mapstructure:"mint"`
}

type RecipientFundingConfig struct {
	BaseAmount  string `mapstructure:"base_amount"`
	QuoteAmount string `mapstructure:"quote_amount"`
}

type DLMMConfig struct {
	BinStep                       int     `mapstructure:"bin_step"`
	FeeBps                        int     `mapstructure:"fee_bps"`
	StartPrice                    float64 `mapstructure:"start_price"`
	ActivationType                string  `mapstructure:"activation_type"`
	ActivationDelaySec            int     `mapstructure:"activation_delay_sec"`
	HasAlphaVault                 bool    `mapstructure:"has_alpha_vault"`
	CreatorPoolOnOffControl       bool    `mapstructure:"creator_pool_on_off_control"`
	ComputeUnitPriceMicroLamports uint64  `mapstructure:"compute_unit_price_micro_lamports"`

	ActivationDelay time.Duration `mapstructure:"-"`
}

type StrategyConfig struct {
	Type            string    `mapstructure:"type"`
	SeedAmount      string    `mapstructure:"seed_amount"`
	RangeMultiplier float64   `mapstructure:"range_multiplier"`
	Curvature       float64   `mapstructure:"curvature"`
	Pad             PadConfig `mapstructure:"pad"`
}

type PadConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	MaxFactor  float64 `mapstructure:"max_factor"`
	SeedAmount string  `mapstructure:"seed_amount"`
	Curvature  float64 `mapstructure:"curvature"`
}

// FundingConfig SOL amounts are whole or fractional SOL.
type FundingConfig struct {
	MinSOL         float64 `mapstructure:"min_sol"`
	PreSeedMinSOL  float64 `mapstructure:"pre_seed_min_sol"`
	PrePadMinSOL   float64 `mapstructure:"pre_pad_min_sol"`
	AirdropSOL     float64 `mapstructure:"airdrop_sol"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	PollIntervalMs int     `mapstructure:"poll_interval_ms"`

	PollInterval time.Duration `mapstructure:"-"`
}

type ResolverConfig struct {
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// Source is "program", "api" or "both".
	Source string `mapstructure:"source"`
	APIURL string `mapstructure:"api_url"`

	InitialDelay time.Duration `mapstructure:"-"`
	PollInterval time.Duration `mapstructure:"-"`
}

type ToolkitConfig struct {
	Dir                 string `mapstructure:"dir"`
	RepoURL             string `mapstructure:"repo_url"`
	Runner              string `mapstructure:"runner"`
	Install             bool   `mapstructure:"install"`
	Prepare             bool   `mapstructure:"prepare"`
	DryRun              bool   `mapstructure:"dry_run"`
	CreateScript        string `mapstructure:"create_script"`
	SeedSingleBinScript string `mapstructure:"seed_single_bin_script"`
	SeedLFGScript       string `mapstructure:"seed_lfg_script"`
}

type ReportConfig struct {
	Dir         string `mapstructure:"dir"`
	Format      string `mapstructure:"format"`
	PostgresURL string `mapstructure:"postgres_url"`
}

var defaults = map[string]interface{}{
	"rpc_list":         []string{"https://api.devnet.solana.com"},
	"websocket_url":    "",
	"rpc_rate_limit":   8,
	"rpc_timeout_ms":   30000,
	"cluster":          "devnet",
	"keypair_path":     "~/.config/solana/id.json",
	"recipient_wallet": "",
	"postgres_url":     "",

	"log.level":       "info",
	"log.file":        "dlmm-launcher.log",
	"log.development": false,
	"log.max_size":    100,
	"log.max_age":     7,
	"log.max_backups": 3,
	"log.compress":    true,

	"base_token.symbol":   "NOMU",
	"base_token.decimals": 6,
	"base_token.supply":   "1000000000",

	"quote_token.mode":     "create",
	"quote_token.symbol":   "USDC",
	"quote_token.decimals": 6,
	"quote_token.supply":   "1000000",
	"quote_token.mint":     "",

	"recipient_funding.base_amount":  "5000000",
	"recipient_funding.quote_amount": "100000",

	"dlmm.bin_step":                          25,
	"dlmm.fee_bps":                           25,
	"dlmm.start_price":                       0.0015,
	"dlmm.activation_type":                   "timestamp",
	"dlmm.activation_delay_sec":              30,
	"dlmm.has_alpha_vault":                   false,
	"dlmm.creator_pool_on_off_control":       false,
	"dlmm.compute_unit_price_micro_lamports": 100000,

	"strategy.type":             "curved_range",
	"strategy.seed_amount":      "100000000",
	"strategy.range_multiplier": 10.0,
	"strategy.curvature":        1.2,
	"strategy.pad.enabled":      true,
	"strategy.pad.max_factor":   1.05,
	"strategy.pad.seed_amount":  "2000000",
	"strategy.pad.curvature":    1.0,

	"funding.min_sol":          2.0,
	"funding.pre_seed_min_sol": 2.0,
	"funding.pre_pad_min_sol":  1.5,
	"funding.airdrop_sol":      2.0,
	"funding.max_attempts":     6,
	"funding.poll_interval_ms": 5000,

	"resolver.initial_delay_ms": 10000,
	"resolver.max_attempts":     6,
	"resolver.poll_interval_ms": 5000,
	"resolver.source":           "both",
	"resolver.api_url":          "https://devnet-dlmm-api.meteora.ag",

	"toolkit.dir":                    "meteora-setup/meteora-pool-setup",
	"toolkit.repo_url":               "https://github.com/MeteoraAg/meteora-pool-setup",
	"toolkit.runner":                 "bun",
	"toolkit.install":                true,
	"toolkit.prepare":                true,
	"toolkit.dry_run":                false,
	"toolkit.create_script":          "src/create_pool.ts",
	"toolkit.seed_single_bin_script": "src/seed_liquidity_single_bin.ts",
	"toolkit.seed_lfg_script":        "src/seed_liquidity_lfg.ts",

	"report.dir":          "reports",
	"report.format":       "json",
	"report.postgres_url": "",
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"cluster":   "cluster",
	"keypair":   "keypair_path",
	"recipient": "recipient_wallet",
	"log-level": "log.level",
	"debug":     "log.development",
	"dry-run":   "toolkit.dry_run",
}

// LoadConfig reads path (JSON or YAML by extension), applies defaults, env
// overrides and bound flags. An empty path uses defaults and env only.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	loadEnvironmentVariables(&cfg)
	cfg.applyDurations()
	cfg.KeypairPath = expandHome(cfg.KeypairPath)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDurations() {
	c.RPCTimeout = time.Duration(c.RPCTimeoutMs) * time.Millisecond
	c.DLMM.ActivationDelay = time.Duration(c.DLMM.ActivationDelaySec) * time.Second
	c.Funding.PollInterval = time.Duration(c.Funding.PollIntervalMs) * time.Millisecond
	c.Resolver.InitialDelay = time.Duration(c.Resolver.InitialDelayMs) * time.Millisecond
	c.Resolver.PollInterval = time.Duration(c.Resolver.PollIntervalMs) * time.Millisecond
}

// ReportPostgresURL is report.postgres_url, falling back to postgres_url.
func (c *Config) ReportPostgresURL() string {
	if c.Report.PostgresURL != "" {
		return c.Report.PostgresURL
	}
	return c.PostgresURL
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL: %w", err)
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURL(cfg.WebSocketURL, "ws"); err != nil {
			return fmt.Errorf("invalid WebSocket URL: %w", err)
		}
	}
	switch cfg.Cluster {
	case "devnet", "testnet", "localnet", "mainnet-beta":
	default:
		return fmt.Errorf("unknown cluster %q", cfg.Cluster)
	}
	if cfg.KeypairPath == "" {
		return errors.New("keypair_path is required")
	}
	switch cfg.QuoteToken.Mode {
	case "create":
	case "existing":
		if cfg.QuoteToken.Mint == "" {
			return errors.New("quote_token.mint is required when mode is existing")
		}
	default:
		return fmt.Errorf("unknown quote_token.mode %q", cfg.QuoteToken.Mode)
	}
	switch cfg.DLMM.ActivationType {
	case "timestamp", "immediate":
	default:
		return fmt.Errorf("unknown dlmm.activation_type %q", cfg.DLMM.ActivationType)
	}
	switch cfg.Strategy.Type {
	case "single_bin", "curved_range":
	default:
		return fmt.Errorf("unknown strategy.type %q", cfg.Strategy.Type)
	}
	switch cfg.Resolver.Source {
	case "program", "api", "both":
	default:
		return fmt.Errorf("unknown resolver.source %q", cfg.Resolver.Source)
	}
	switch cfg.Report.Format {
	case "json", "yaml", "csv":
	default:
		return fmt.Errorf("unknown report.format %q", cfg.Report.Format)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.DLMM.BinStep <= 0 {
		return errors.New("invalid dlmm.bin_step")
	}
	if cfg.DLMM.StartPrice <= 0 {
		return errors.New("invalid dlmm.start_price")
	}
	if cfg.DLMM.ActivationDelaySec < 0 {
		return errors.New("invalid dlmm.activation_delay_sec")
	}
	// Setup transactions must land before a timestamp activation opens trading.
	if cfg.DLMM.ActivationType == "timestamp" && cfg.DLMM.ActivationDelaySec == 0 {
		return errors.New("dlmm.activation_delay_sec must be positive for timestamp activation")
	}
	// The pad is always seeded flat.
	if cfg.Strategy.Pad.Enabled && cfg.Strategy.Pad.Curvature != 1 {
		return fmt.Errorf("strategy.pad.curvature must be 1, got %v", cfg.Strategy.Pad.Curvature)
	}
	if cfg.Funding.MaxAttempts < 1 {
		return errors.New("invalid funding.max_attempts")
	}
	if cfg.Resolver.MaxAttempts < 1 {
		return errors.New("invalid resolver.max_attempts")
	}
	if cfg.RPCRateLimit < 0 {
		return errors.New("invalid rpc_rate_limit")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return fmt.Errorf("invalid URL protocol %q", parsed.Scheme)
	}
	return nil
}

// loadEnvironmentVariables handles the comma separated RPC list, which
// AutomaticEnv cannot split.
func loadEnvironmentVariables(cfg *Config) {
	envRPCList := os.Getenv(EnvPrefix + "_RPC_LIST")
	if envRPCList == "" {
		return
	}
	var cleanRPCs []string
	for _, rpc := range strings.Split(envRPCList, ",") {
		if clean := strings.TrimSpace(rpc); clean != "" {
			cleanRPCs = append(cleanRPCs, clean)
		}
	}
	if len(cleanRPCs) > 0 {
		cfg.RPCList = cleanRPCs
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
