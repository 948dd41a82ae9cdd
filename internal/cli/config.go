package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/rituo/internal/paths"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "RITUO"

	// Config keys.
	cfgKeyDriver           = "driver"
	cfgKeyDSN              = "dsn"
	cfgKeyDataDir          = "data_dir"
	cfgKeyListenAddr       = "listen_addr"
	cfgKeyJWTSecret        = "jwt_secret"
	cfgKeyTokenTTL         = "token_ttl"
	cfgKeyRolloverSchedule = "rollover_schedule"
	cfgKeyQueryTimeout     = "query_timeout"
	cfgKeyAuthRateLimit    = "auth_rate_limit"
	cfgKeyLogLevel         = "log_level"
	cfgKeyLogFormat        = "log_format"

	defaultJWTSecret = "dev-secret-key"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// envKeys are bound to RITUO_<KEY>. data_dir is left out so that
// RITUO_DATA_DIR keeps its place below config.yaml in paths.ResolveDataDir.
var envKeys = []string{
	cfgKeyDriver, cfgKeyDSN, cfgKeyListenAddr, cfgKeyJWTSecret, cfgKeyTokenTTL,
	cfgKeyRolloverSchedule, cfgKeyQueryTimeout, cfgKeyAuthRateLimit,
	cfgKeyLogLevel, cfgKeyLogFormat,
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Driver           string  `yaml:"driver"`
	DSN              string  `yaml:"dsn,omitempty"`
	DataDir          string  `yaml:"data_dir,omitempty"`
	ListenAddr       string  `yaml:"listen_addr"`
	JWTSecret        string  `yaml:"jwt_secret"`
	TokenTTL         string  `yaml:"token_ttl"`
	RolloverSchedule string  `yaml:"rollover_schedule"`
	QueryTimeout     string  `yaml:"query_timeout"`
	AuthRateLimit    float64 `yaml:"auth_rate_limit"`
	LogLevel         string  `yaml:"log_level"`
	LogFormat        string  `yaml:"log_format"`
}

// loadConfig reads config.yaml from configDir, overlays RITUO_* variables
// and defaults, and returns the validated process configuration. A
// missing config.yaml is not an error.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDriver, types.DriverSQLite)
	v.SetDefault(cfgKeyListenAddr, types.DefaultListenAddr)
	v.SetDefault(cfgKeyJWTSecret, defaultJWTSecret)
	v.SetDefault(cfgKeyTokenTTL, types.DefaultTokenTTL)
	v.SetDefault(cfgKeyRolloverSchedule, types.DefaultRolloverSchedule)
	v.SetDefault(cfgKeyQueryTimeout, types.DefaultQueryTimeout)
	v.SetDefault(cfgKeyAuthRateLimit, types.DefaultAuthRateLimit)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return types.Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Store: types.StoreConfig{
			Driver:       v.GetString(cfgKeyDriver),
			DSN:          v.GetString(cfgKeyDSN),
			DataDir:      dataDir,
			QueryTimeout: v.GetDuration(cfgKeyQueryTimeout),
		},
		ListenAddr:       v.GetString(cfgKeyListenAddr),
		JWTSecret:        v.GetString(cfgKeyJWTSecret),
		TokenTTL:         v.GetDuration(cfgKeyTokenTTL),
		RolloverSchedule: v.GetString(cfgKeyRolloverSchedule),
		AuthRateLimit:    v.GetFloat64(cfgKeyAuthRateLimit),
		LogLevel:         v.GetString(cfgKeyLogLevel),
		LogFormat:        v.GetString(cfgKeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveConfig resolves the config directory and loads the configuration.
func resolveConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	return loadConfig(configDir)
}

// writeConfigIfMissing creates config.yaml with default values and a fresh
// signing secret if the file does not exist. An existing file is left alone.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	secret, err := newSecret()
	if err != nil {
		return false, err
	}
	cfg := configFile{
		Driver:           types.DriverSQLite,
		DataDir:          dataDir,
		ListenAddr:       types.DefaultListenAddr,
		JWTSecret:        secret,
		TokenTTL:         types.DefaultTokenTTL.String(),
		RolloverSchedule: types.DefaultRolloverSchedule,
		QueryTimeout:     types.DefaultQueryTimeout.String(),
		AuthRateLimit:    types.DefaultAuthRateLimit,
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// today returns the server-local calendar day, or the date given with
// --date.
func today(flag string) (types.Date, error) {
	if flag == "" {
		return types.DateOf(time.Now()), nil
	}
	d, err := types.ParseDate(flag)
	if err != nil {
		return types.Date{}, types.Errorf(types.ErrValidation, "parse --date", "%v", err)
	}
	return d, nil
}
