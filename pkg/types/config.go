package types

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied by the CLI when a key is absent.
const (
	DefaultListenAddr       = ":5000"
	DefaultRolloverSchedule = "0 0 * * *"
	DefaultTokenTTL         = 24 * time.Hour
	DefaultQueryTimeout     = 5 * time.Second
	DefaultAuthRateLimit    = 5.0
)

// knownDrivers lists the drivers Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// StoreConfig selects and parameterizes the ledger backend.
type StoreConfig struct {
	Driver       string        `json:"driver" yaml:"driver"`
	DSN          string        `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	DataDir      string        `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	QueryTimeout time.Duration `json:"query_timeout,omitempty" yaml:"query_timeout,omitempty"`
}

// Validate checks that the StoreConfig is well-formed.
func (c StoreConfig) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.Driver == DriverPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	if c.QueryTimeout < 0 {
		return ErrDurationInvalid
	}
	return nil
}

// Config is the full process configuration for `rituo serve`.
type Config struct {
	Store            StoreConfig
	ListenAddr       string
	JWTSecret        string
	TokenTTL         time.Duration
	RolloverSchedule string
	AuthRateLimit    float64
	LogLevel         string
	LogFormat        string
}

// Validate checks the server-level settings and the store settings.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return ErrJWTSecretMissing
	}
	if c.TokenTTL <= 0 {
		return ErrDurationInvalid
	}
	if c.RolloverSchedule == "" {
		return ErrScheduleInvalid
	}
	if _, err := cron.ParseStandard(c.RolloverSchedule); err != nil {
		return fmt.Errorf("%w %q: %v", ErrScheduleInvalid, c.RolloverSchedule, err)
	}
	return nil
}
