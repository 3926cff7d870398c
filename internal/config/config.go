package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// TokenConfig is a bearer token for documentation hosts that need one. It can
// be given inline or as a path to a file holding the token.
type TokenConfig struct {
	Value string `mapstructure:"-"`
	Path  string `mapstructure:"path"`
}

type FetchConfig struct {
	Token          TokenConfig `mapstructure:"token"`
	UserAgent      string      `mapstructure:"user_agent"`
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	Concurrency    int         `mapstructure:"concurrency"`
	// HTMLFallback builds outlines from page HTML when a navtree script
	// is missing.
	HTMLFallback   bool        `mapstructure:"html_fallback"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type Config struct {
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Search SearchConfig `mapstructure:"search"`
	Daemon DaemonConfig `mapstructure:"daemon"`
}

// cacheBase returns the base cache directory for doxnav.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/doxnav as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "doxnav")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "doxnav")
	}
	return filepath.Join(os.TempDir(), "doxnav")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "index.duckdb")
}

// CASDir returns the path to the content-addressable artifact store.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// SnapshotDir returns the directory holding compressed docset snapshots.
func SnapshotDir() string {
	return filepath.Join(cacheBase(), "snapshots")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "doxnav", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "doxnav", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "doxnav"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "doxnav"))
	}

	viper.SetDefault("fetch.user_agent", "doxnav/0.1.0")
	viper.SetDefault("fetch.timeout_seconds", 60)
	viper.SetDefault("fetch.concurrency", 8)
	viper.SetDefault("fetch.html_fallback", false)
	viper.SetDefault("search.default_limit", 20)
	viper.SetDefault("daemon.expiration_seconds", 600)

	viper.SetEnvPrefix("DOXNAV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func stringToTokenConfigHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(TokenConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return TokenConfig{Value: data.(string)}, nil
		}
		return data, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.AllSettings())
}

func decode(settings map[string]interface{}) (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: stringToTokenConfigHookFunc(),
		Result:     &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveToken(&config.Fetch.Token, viper.GetString("fetch.token")); err != nil {
		return nil, fmt.Errorf("failed to resolve fetch token: %w", err)
	}

	return &config, nil
}

// resolveToken fills in Value. An override that looks like a path is read
// from disk, anything else is taken literally.
func resolveToken(token *TokenConfig, override string) error {
	if override != "" {
		if !strings.HasPrefix(override, "/") && !strings.HasPrefix(override, "./") && !strings.HasPrefix(override, "~/") {
			token.Value = override
			return nil
		}
		token.Path = override
	}

	if token.Path != "" {
		if strings.HasPrefix(token.Path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				token.Path = filepath.Join(home, token.Path[2:])
			}
		}
		keyBytes, err := os.ReadFile(token.Path)
		if err != nil {
			return fmt.Errorf("failed to read token from file %s: %w", token.Path, err)
		}
		token.Value = strings.TrimSpace(string(keyBytes))
	}

	return nil
}
