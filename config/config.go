// Package config loads the pharmacy server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// Config is the whole server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Audit   AuditConfig   `yaml:"audit"`
	Log     LogConfig     `yaml:"log"`
	Users   []UserConfig  `yaml:"users"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// StorageConfig selects the persister. An empty DBPath keeps everything in
// memory for the life of the process.
type StorageConfig struct {
	DBPath           string        `yaml:"db_path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

type LedgerConfig struct {
	MaxUsers          int `yaml:"max_users"`
	MaxMedicines      int `yaml:"max_medicines"`
	MaxPrescriptions  int `yaml:"max_prescriptions"`
	MaxTransactions   int `yaml:"max_transactions"`
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

type AuditConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// UserConfig seeds an account when the store has no users.
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Load reads configPath over the defaults. A missing file yields the
// defaults. ${VAR} references are expanded from the environment.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// DefaultConfig matches the limits and accounts of a fresh installation.
func DefaultConfig() *Config {
	limits := pharmacy.DefaultLimits()
	lc := pharmacy.DefaultConfig()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-me"
	}

	var users []UserConfig
	for _, u := range pharmacy.DefaultUsers() {
		users = append(users, UserConfig{Username: u.Username, Password: u.Password, Role: string(u.Role)})
	}

	return &Config{
		Server: ServerConfig{
			Port:            8080,
			JWTSecret:       secret,
			TokenTTL:        8 * time.Hour,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			DBPath:           "./data/pharmacy.db",
			AutosaveInterval: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			MaxUsers:          limits.Users,
			MaxMedicines:      limits.Medicines,
			MaxPrescriptions:  limits.Prescriptions,
			MaxTransactions:   limits.Transactions,
			LowStockThreshold: lc.LowStockThreshold,
		},
		Audit: AuditConfig{QueueSize: 1024},
		Log:   LogConfig{Level: "info"},
		Users: users,
	}
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is required")
	}
	if c.Server.TokenTTL <= 0 {
		return errors.New("server.token_ttl must be positive")
	}
	for name, v := range map[string]int{
		"ledger.max_users":           c.Ledger.MaxUsers,
		"ledger.max_medicines":       c.Ledger.MaxMedicines,
		"ledger.max_prescriptions":   c.Ledger.MaxPrescriptions,
		"ledger.max_transactions":    c.Ledger.MaxTransactions,
		"ledger.low_stock_threshold": c.Ledger.LowStockThreshold,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Storage.AutosaveInterval < 0 {
		return errors.New("storage.autosave_interval cannot be negative")
	}
	for i, u := range c.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: username and password are required", i)
		}
		if _, err := pharmacy.ParseRole(u.Role); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	return nil
}

// LedgerConfig converts to the Ledger's own configuration.
func (c *Config) LedgerConfig() pharmacy.Config {
	return pharmacy.Config{
		Limits: pharmacy.Limits{
			Users:         c.Ledger.MaxUsers,
			Medicines:     c.Ledger.MaxMedicines,
			Prescriptions: c.Ledger.MaxPrescriptions,
			Transactions:  c.Ledger.MaxTransactions,
		},
		LowStockThreshold: c.Ledger.LowStockThreshold,
	}
}

// SeedUsers converts the configured accounts. Roles were checked by Validate.
func (c *Config) SeedUsers() []pharmacy.UserSeed {
	seeds := make([]pharmacy.UserSeed, 0, len(c.Users))
	for _, u := range c.Users {
		seeds = append(seeds, pharmacy.UserSeed{Username: u.Username, Password: u.Password, Role: pharmacy.Role(u.Role)})
	}
	return seeds
}

// Save writes the configuration as YAML.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
