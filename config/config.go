package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

var (
	GlobalConfigCallback  ConfigCallback[GlobalConfig] = ConfigCallback[GlobalConfig]{}
	CfgFlag                                            = flag.String("config", "config.toml", "Configuration file (toml format)")
	BackoffMaxElapsedTime time.Duration                = 2 * time.Minute
	Timeout               time.Duration                = 5 * time.Second
)

type GlobalConfig interface {
	LoggerConfig() LoggerConfig
	ChainConfig() ChainConfig
}

type Config struct {
	DB     DBConfig     `toml:"db"`
	Logger LoggerConfig `toml:"logger"`
	Chain  ChainConfig  `toml:"chain"`
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
}

type LoggerConfig struct {
	Level       string `toml:"level"` // valid values are: DEBUG, INFO, WARN, ERROR, DPANIC, PANIC, FATAL (zap)
	File        string `toml:"file"`
	MaxFileSize int    `toml:"max_file_size"` // In megabytes
	Console     bool   `toml:"console"`
}

type DBConfig struct {
	Host             string `toml:"host" envconfig:"DB_HOST"`
	Port             int    `toml:"port" envconfig:"DB_PORT"`
	Database         string `toml:"database" envconfig:"DB_DATABASE"`
	Username         string `toml:"username" envconfig:"DB_USERNAME"`
	Password         string `toml:"password" envconfig:"DB_PASSWORD"`
	LogQueries       bool   `toml:"log_queries"`
	DropTableAtStart bool   `toml:"drop_table_at_start"`
}

// ChainConfig points at an EVM node used only to snapshot the chain head
// (block number and timestamp) for order expiration checks. When NodeURL is
// empty the settler falls back to wall-clock heads.
type ChainConfig struct {
	NodeURL string `toml:"node_url" envconfig:"CHAIN_NODE_URL"`
}

type ServerConfig struct {
	Addr string `toml:"addr" envconfig:"SERVER_ADDR"`
}

type EngineConfig struct {
	FeeTokenAddress string `toml:"fee_token_address" envconfig:"FEE_TOKEN_ADDRESS"`
	MaxRingSize     int    `toml:"max_ring_size"`
}

func newConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8545"},
		Engine: EngineConfig{MaxRingSize: 8},
	}
}

func BuildConfig() (*Config, error) {
	cfgFileName := *CfgFlag

	cfg := newConfig()
	err := ParseConfigFile(cfg, cfgFileName)
	if err != nil {
		return nil, err
	}
	err = ReadEnv(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseConfigFile(cfg *Config, fileName string) error {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("error opening config file: %w", err)
	}

	_, err = toml.Decode(string(content), cfg)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

func ReadEnv(cfg interface{}) error {
	err := envconfig.Process("", cfg)
	if err != nil {
		return fmt.Errorf("error reading env config: %w", err)
	}
	return nil
}

func (c Config) LoggerConfig() LoggerConfig {
	return c.Logger
}

func (c Config) ChainConfig() ChainConfig {
	return c.Chain
}

func (c ChainConfig) FullNodeURL() (*url.URL, error) {
	return url.Parse(c.NodeURL)
}
