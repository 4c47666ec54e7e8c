// Package config implements the TOML configuration for gateway clients and
// the command line tool.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

const defaultLogLevel = "NOTICE"

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl
	return nil
}

// Account holds the gateway credentials and key material locations.
type Account struct {
	// Identity is the 8-character gateway sender identity.
	Identity string

	// Secret is the API secret issued for the identity.
	Secret string

	// PrivateKeyFile is the path of the sender's private key file.
	PrivateKeyFile string
}

func (aCfg *Account) validate() error {
	if err := protocol.Identity(aCfg.Identity).Validate(); err != nil {
		return fmt.Errorf("config: Account: %v", err)
	}
	if aCfg.Secret == "" {
		return fmt.Errorf("config: Account: Secret is missing")
	}
	return nil
}

// Gateway holds the API endpoint configuration.
type Gateway struct {
	// APIURL overrides the gateway base URL, if omitted the hosted
	// gateway is used.
	APIURL string

	// KeyStorePath is the path of the SQLite public-key store, if
	// omitted keys are cached in memory only.
	KeyStorePath string
}

// Config is the top level configuration.
type Config struct {
	Account Account
	Gateway Gateway
	Logging *Logging
}

// FixupAndValidate applies defaults and checks the configuration.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Logging == nil {
		cfg.Logging = &defaultLogging
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	return cfg.Account.validate()
}

// Load parses and validates a configuration from a byte buffer.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates a configuration file.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
