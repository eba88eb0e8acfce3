// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CURVECTL_RPC_URL.
const EnvPrefix = "CURVECTL"

type Config struct {
	Env         string `mapstructure:"env"`
	RPCURL      string `mapstructure:"rpc_url"`
	KeypairPath string `mapstructure:"keypair_path"`

	ProgramID   string `mapstructure:"program_id"`
	AmmConfig   string `mapstructure:"amm_config"`
	LookupTable string `mapstructure:"lookup_table"`

	Commitment          string `mapstructure:"commitment"`
	ConfirmTimeoutMs    int    `mapstructure:"confirm_timeout_ms"`
	ConfirmPollMs       int    `mapstructure:"confirm_poll_ms"`
	LookupTableSettleMs int    `mapstructure:"lookup_table_settle_ms"`
	ComputeUnitLimit    uint32 `mapstructure:"compute_unit_limit"`
	PriorityFee         uint64 `mapstructure:"priority_fee"` // micro-lamports
	SlippageBps         uint64 `mapstructure:"slippage_bps"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
	MetricsFile  string `mapstructure:"metrics_file"`
	JournalFile  string `mapstructure:"journal_file"`

	Curve CurveSettings `mapstructure:"curve"`
	Token TokenSettings `mapstructure:"token"`
}

// CurveSettings seed the global Config account written by the config command.
type CurveSettings struct {
	TeamWallet      string `mapstructure:"team_wallet"`
	MigrationWallet string `mapstructure:"migration_wallet"`

	InitBondingCurve    uint64  `mapstructure:"init_bonding_curve"`
	BuyFeePercent       float64 `mapstructure:"buy_fee_percent"`
	SellFeePercent      float64 `mapstructure:"sell_fee_percent"`
	MigrationFeePercent float64 `mapstructure:"migration_fee_percent"`

	MinLamports   uint64 `mapstructure:"min_lamports"`
	MaxLamports   uint64 `mapstructure:"max_lamports"`
	TokenSupply   uint64 `mapstructure:"token_supply"`
	TokenDecimals uint8  `mapstructure:"token_decimals"`

	InitialVirtualTokenReserves uint64 `mapstructure:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64 `mapstructure:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64 `mapstructure:"initial_real_token_reserves"`
	InitialMeteoraTokenReserves uint64 `mapstructure:"initial_meteora_token_reserves"`
	InitialMeteoraSolAmount     uint64 `mapstructure:"initial_meteora_sol_amount"`
	CurveLimit                  uint64 `mapstructure:"curve_limit"`
}

// TokenSettings describe the token launched by the curve command.
type TokenSettings struct {
	Name            string `mapstructure:"name"`
	Symbol          string `mapstructure:"symbol"`
	URI             string `mapstructure:"uri"`
	Decimals        uint8  `mapstructure:"decimals"`
	Supply          uint64 `mapstructure:"supply"`
	ReserveLamports uint64 `mapstructure:"reserve_lamports"`
}

const (
	DefaultEnv                 = "devnet"
	DefaultKeypairPath         = "./keys/payer.json"
	DefaultCommitment          = "confirmed"
	DefaultConfirmTimeoutMs    = 60_000
	DefaultConfirmPollMs       = 500
	DefaultLookupTableSettleMs = 2_000
	DefaultComputeUnitLimit    = 1_400_000
	DefaultSlippageBps         = 100
	DefaultLogFile             = "curvectl.log"
)

func defaults() map[string]interface{} {
	// Ключи без значения по умолчанию тоже регистрируются, иначе
	// Unmarshal не увидит их переопределение через окружение.
	return map[string]interface{}{
		"rpc_url":                "",
		"program_id":             "",
		"lookup_table":           "",
		"priority_fee":           0,
		"debug_logging":          false,
		"metrics_file":           "",
		"journal_file":           "",
		"token.name":             "",
		"token.symbol":           "",
		"token.uri":              "",
		"env":                    DefaultEnv,
		"keypair_path":           DefaultKeypairPath,
		"amm_config":             "BdfD7rrTZEWmf8UbEBPVpvM3wUqyrR8swjAy5SNT8gJ2",
		"commitment":             DefaultCommitment,
		"confirm_timeout_ms":     DefaultConfirmTimeoutMs,
		"confirm_poll_ms":        DefaultConfirmPollMs,
		"lookup_table_settle_ms": DefaultLookupTableSettleMs,
		"compute_unit_limit":     DefaultComputeUnitLimit,
		"slippage_bps":           DefaultSlippageBps,
		"log_file":               DefaultLogFile,

		"curve.team_wallet":                    "Br4NUsLoHRgAcxTBsDwgnejnjqMe5bkyio1YCrM3gWM2",
		"curve.migration_wallet":               "DQ8fi6tyN9MPD5bpSpUXxKd9FVRY2WcnoniVEgs6StEW",
		"curve.init_bonding_curve":             100,
		"curve.buy_fee_percent":                0.69,
		"curve.sell_fee_percent":               0.69,
		"curve.migration_fee_percent":          0.69,
		"curve.min_lamports":                   15_000_000_000,
		"curve.max_lamports":                   20_000_000_000,
		"curve.token_supply":                   1_000_000_000,
		"curve.token_decimals":                 6,
		"curve.initial_virtual_token_reserves": 1_073_000_000_000_000,
		"curve.initial_virtual_sol_reserves":   30_000_000_000,
		"curve.initial_real_token_reserves":    793_100_000_000_000,
		"curve.initial_meteora_token_reserves": 206_900_000_000_000,
		"curve.initial_meteora_sol_amount":     62_000_000_000,
		"curve.curve_limit":                    62_000_000_000,

		"token.decimals":         6,
		"token.supply":           1_000_000_000,
		"token.reserve_lamports": 15_000_000_000,
	}
}

// ConfigurationError is a missing or malformed setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}

// Loader reads the configuration from an optional file, the environment and
// bound command-line flags, in increasing priority.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlag makes a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("flag for %s is not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path (skipped when empty), unmarshals and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL(cfg.Env)
	}
	return &cfg, cfg.Validate()
}

// LoadConfig is a shortcut for NewLoader().Load(path).
func LoadConfig(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// DefaultRPCURL returns the public endpoint of a cluster name.
func DefaultRPCURL(env string) string {
	switch env {
	case "mainnet", "mainnet-beta":
		return rpc.MainNetBeta_RPC
	case "testnet":
		return rpc.TestNet_RPC
	case "localnet", "localhost":
		return rpc.LocalNet_RPC
	default:
		return rpc.DevNet_RPC
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.Env {
	case "mainnet", "mainnet-beta", "devnet", "testnet", "localnet", "localhost":
	default:
		return &ConfigurationError{Key: "env", Reason: fmt.Sprintf("unknown cluster %q", c.Env)}
	}
	if err := validateURL(c.RPCURL, "http"); err != nil {
		return &ConfigurationError{Key: "rpc_url", Reason: err.Error()}
	}
	if c.KeypairPath == "" {
		return &ConfigurationError{Key: "keypair_path", Reason: "is required"}
	}
	if c.ProgramID == "" {
		return &ConfigurationError{Key: "program_id", Reason: "is required"}
	}
	for key, value := range map[string]string{
		"program_id":   c.ProgramID,
		"amm_config":   c.AmmConfig,
		"lookup_table": c.LookupTable,
	} {
		if value == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return &ConfigurationError{Key: key, Reason: "not a valid public key"}
		}
	}
	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return &ConfigurationError{Key: "commitment", Reason: fmt.Sprintf("unsupported level %q", c.Commitment)}
	}
	if c.ConfirmTimeoutMs <= 0 {
		return &ConfigurationError{Key: "confirm_timeout_ms", Reason: "must be positive"}
	}
	if c.ConfirmPollMs < 0 {
		return &ConfigurationError{Key: "confirm_poll_ms", Reason: "must not be negative"}
	}
	if c.LookupTableSettleMs < 0 {
		return &ConfigurationError{Key: "lookup_table_settle_ms", Reason: "must not be negative"}
	}
	if c.SlippageBps >= 10_000 {
		return &ConfigurationError{Key: "slippage_bps", Reason: "must be below 10000"}
	}
	return nil
}

// ValidateCurve checks the settings of the config command.
func (c *Config) ValidateCurve() error {
	s := c.Curve
	for key, value := range map[string]string{
		"curve.team_wallet":      s.TeamWallet,
		"curve.migration_wallet": s.MigrationWallet,
	} {
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return &ConfigurationError{Key: key, Reason: "not a valid public key"}
		}
	}
	for key, fee := range map[string]float64{
		"curve.buy_fee_percent":       s.BuyFeePercent,
		"curve.sell_fee_percent":      s.SellFeePercent,
		"curve.migration_fee_percent": s.MigrationFeePercent,
	} {
		if fee < 0 || fee >= 100 {
			return &ConfigurationError{Key: key, Reason: "must be in [0, 100)"}
		}
	}
	if s.MinLamports > s.MaxLamports {
		return &ConfigurationError{Key: "curve.min_lamports", Reason: "exceeds max_lamports"}
	}
	if s.InitialVirtualSolReserves == 0 || s.InitialVirtualTokenReserves == 0 {
		return &ConfigurationError{Key: "curve.initial_virtual_sol_reserves", Reason: "virtual reserves must be positive"}
	}
	if s.CurveLimit == 0 {
		return &ConfigurationError{Key: "curve.curve_limit", Reason: "must be positive"}
	}
	return nil
}

// ValidateToken checks the settings of the curve command.
func (c *Config) ValidateToken() error {
	t := c.Token
	switch {
	case t.Name == "":
		return &ConfigurationError{Key: "token.name", Reason: "is required"}
	case t.Symbol == "":
		return &ConfigurationError{Key: "token.symbol", Reason: "is required"}
	case t.Supply == 0:
		return &ConfigurationError{Key: "token.supply", Reason: "must be positive"}
	case t.ReserveLamports == 0:
		return &ConfigurationError{Key: "token.reserve_lamports", Reason: "must be positive"}
	}
	return nil
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMs) * time.Millisecond
}

// ConfirmPoll is zero when unset; the transaction manager then uses its default.
func (c *Config) ConfirmPoll() time.Duration {
	return time.Duration(c.ConfirmPollMs) * time.Millisecond
}

func (c *Config) LookupTableSettle() time.Duration {
	return time.Duration(c.LookupTableSettleMs) * time.Millisecond
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}
