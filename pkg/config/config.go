package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the relayer configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Relayer     RelayerConfig     `yaml:"relayer"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Operator    OperatorConfig    `yaml:"operator"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver" default:"postgres" validate:"oneof=postgres sqlite"`
	Host     string `yaml:"host" default:"localhost" validate:"required_if=Driver postgres"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"relayer" validate:"required_if=Driver postgres"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
	// Path is the sqlite database file
	Path string `yaml:"path" validate:"required_if=Driver sqlite"`
}

// SourceConfig contains the EVM source chain settings
type SourceConfig struct {
	RPCURL             string `yaml:"rpc_url" validate:"required,url"`
	ChainID            int64  `yaml:"chain_id" validate:"required,gt=0"`
	BridgeContract     string `yaml:"bridge_contract" validate:"required,eth_addr"`
	RelayerPrivateKey  string `yaml:"relayer_private_key" validate:"required"`
	ConfirmationBlocks uint64 `yaml:"confirmation_blocks" default:"12"`
	StartBlock         uint64 `yaml:"start_block"`
	MaxBlockRange      uint64 `yaml:"max_block_range" default:"2000" validate:"gt=0"`
	Decimals           int32  `yaml:"decimals" default:"18" validate:"min=0,max=36"`
	GasLimit           uint64 `yaml:"gas_limit" default:"200000" validate:"gt=0"`
	// MaxGasPrice in wei, empty means no cap
	MaxGasPrice string `yaml:"max_gas_price" validate:"omitempty,numeric"`
}

// DestinationConfig contains the Solana destination chain settings
type DestinationConfig struct {
	RPCURL            string  `yaml:"rpc_url" validate:"required,url"`
	Mint              string  `yaml:"mint" validate:"required"`
	RelayerKeypair    string  `yaml:"relayer_keypair" validate:"required"`
	ConfirmationSlots uint64  `yaml:"confirmation_slots" default:"32"`
	StartSlot         uint64  `yaml:"start_slot"`
	Decimals          int32   `yaml:"decimals" default:"9" validate:"min=0,max=18"`
	Commitment        string  `yaml:"commitment" default:"finalized" validate:"oneof=processed confirmed finalized"`
	MemoProgram       string  `yaml:"memo_program" default:"MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"10" validate:"gt=0"`
	SignaturePageSize int     `yaml:"signature_page_size" default:"100" validate:"min=1,max=1000"`
}

// RelayerConfig contains scheduling, retry and safety settings
type RelayerConfig struct {
	TickInterval        time.Duration   `yaml:"tick_interval" default:"10s" validate:"gt=0"`
	Workers             int             `yaml:"workers" default:"4" validate:"min=1"`
	BatchSize           int             `yaml:"batch_size" default:"50" validate:"min=1"`
	Backoff             []time.Duration `yaml:"backoff" validate:"required,min=1"`
	LeaseDuration       time.Duration   `yaml:"lease_duration" default:"10m" validate:"gt=0"`
	RPCTimeout          time.Duration   `yaml:"rpc_timeout" default:"30s" validate:"gt=0"`
	ConfirmationTimeout time.Duration   `yaml:"confirmation_timeout" default:"2m" validate:"gt=0"`
	HeuristicEnabled    *bool           `yaml:"heuristic_enabled" default:"true"`
	HeuristicWindow     int             `yaml:"heuristic_window" default:"50" validate:"min=1"`
	// HeuristicTolerance is in destination smallest units
	HeuristicTolerance uint64 `yaml:"heuristic_tolerance"`
	// MinTransferAmount and MaxTransferAmount are in source token units, e.g. "0.01"
	MinTransferAmount string `yaml:"min_transfer_amount" default:"0" validate:"numeric"`
	MaxTransferAmount string `yaml:"max_transfer_amount" validate:"omitempty,numeric"`
	// LowBalance thresholds are in native chain units (ETH, SOL)
	SourceLowBalance      string `yaml:"source_low_balance" default:"0.05" validate:"numeric"`
	DestinationLowBalance string `yaml:"destination_low_balance" default:"0.1" validate:"numeric"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// OperatorConfig contains settings for the operator API
type OperatorConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer" default:"bridge-relayer"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// DefaultBackoff is used when the config does not list a schedule
var DefaultBackoff = []time.Duration{5 * time.Second, 30 * time.Second, 5 * time.Minute, 30 * time.Minute}

// Load reads the YAML file at configPath. Values of the form ${VAR} are expanded from the
// environment after an optional .env file next to the working directory is loaded.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML document
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	// defaults go in first so explicit zero values in the document survive
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Relayer.Backoff) == 0 {
		cfg.Relayer.Backoff = append([]time.Duration(nil), DefaultBackoff...)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	for i := 1; i < len(cfg.Relayer.Backoff); i++ {
		if cfg.Relayer.Backoff[i] <= cfg.Relayer.Backoff[i-1] {
			return fmt.Errorf("relayer.backoff must be strictly increasing (entry %d)", i)
		}
	}
	if cfg.Relayer.Backoff[0] <= 0 {
		return fmt.Errorf("relayer.backoff entries must be positive")
	}
	if cfg.Relayer.LeaseDuration <= cfg.Relayer.ConfirmationTimeout+cfg.Relayer.RPCTimeout {
		return fmt.Errorf("relayer.lease_duration must exceed confirmation_timeout + rpc_timeout")
	}
	return nil
}

// HeuristicOn reports whether heuristic reconciliation is enabled
func (c *RelayerConfig) HeuristicOn() bool {
	return c.HeuristicEnabled == nil || *c.HeuristicEnabled
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
