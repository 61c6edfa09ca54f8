package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the client, the server and the tools.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Keychain KeychainConfig `mapstructure:"keychain"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig points the client at a backend.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout_seconds"`
}

// KeychainConfig configures the on-disk credential store.
type KeychainConfig struct {
	Dir           string `mapstructure:"dir"`
	Service       string `mapstructure:"service"`
	MasterKeyFile string `mapstructure:"master_key_file"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	DataDir        string `mapstructure:"data_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// LogConfig selects the log destination. An empty File means stderr.
type LogConfig struct {
	File string `mapstructure:"file"`
}

// LoadConfig reads configuration from path (or TAILTRAIL_CONFIG, or
// tailtrail.{toml,json,yaml} in the working directory and the user config
// directory) and applies TAILTRAIL_* environment overrides. A missing
// config file is not an error unless path was given explicitly.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("keychain.dir", defaultKeychainDir())
	v.SetDefault("keychain.service", "com.tailtrail.authtoken")
	v.SetDefault("keychain.master_key_file", "master.key")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.data_dir", filepath.Join(GetProjectRoot(), "data"))
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("log.file", "")

	if path == "" {
		path = os.Getenv("TAILTRAIL_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tailtrail")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "tailtrail"))
		}
	}

	v.SetEnvPrefix("TAILTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	return c, nil
}

func defaultKeychainDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tailtrail", "keychain")
	}
	return filepath.Join(dir, "tailtrail", "keychain")
}

// GetProjectRoot returns the absolute path to the project root directory.
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "." // fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached root
		}
		dir = parent
	}
	return "." // fallback
}
