package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`

	// Threads caps the number of worker threads. <= 0 means hardware
	// concurrency.
	Threads int `yaml:"threads"`

	// TimeoutSeconds is the server-wide deadline. <= 0 disables it.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxMessageSize bounds, in bytes, each string field (topic, message
	// data) of one wire record.
	MaxMessageSize int `yaml:"max_message_size"`
}

// ServerConfig holds the listening endpoints.
type ServerConfig struct {
	Address string     `yaml:"address"`
	Port    int        `yaml:"port"`
	HTTP    HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the observability endpoint.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StorageConfig selects the storage and queue implementations. Unknown
// values fall back to the single defined variant with a warning.
type StorageConfig struct {
	Type  string `yaml:"type"`  // ram
	Queue string `yaml:"queue"` // mutex
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

// ClientConfig is the configuration consumed by the client CLI.
type ClientConfig struct {
	Client struct {
		ServerAddress string `yaml:"server_address"`
		ServerPort    int    `yaml:"server_port"`
	} `yaml:"client"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "127.0.0.1",
			Port:    9090,
			HTTP:    HTTPConfig{Enabled: true, Port: 8080},
		},
		Storage: StorageConfig{
			Type:  "ram",
			Queue: "mutex",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Threads:        0,
		TimeoutSeconds: 0,
		MaxMessageSize: 65536,
	}
}

// Load reads configuration from a YAML file, overlaying it onto the
// defaults. A missing file yields the defaults; a malformed file is an
// error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadClient reads the client CLI configuration.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	cfg.Client.ServerAddress = "127.0.0.1"
	cfg.Client.ServerPort = 9090

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse client config %s: %w", path, err)
	}

	return cfg, nil
}
