// Package config loads the credvault.yaml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/internal/logging"
)

// DefaultPath is where the CLI looks for configuration when --config is not
// given.
const DefaultPath = "credvault.yaml"

// Config holds runtime state assembled by the CLI.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the credvault.yaml structure.
type Definition struct {
	Version    int              `yaml:"version"`
	Store      StoreConfig      `yaml:"store"`
	Encryption EncryptionConfig `yaml:"encryption,omitempty"`
	Catalog    CatalogConfig    `yaml:"catalog,omitempty"`
	Alarms     AlarmsConfig     `yaml:"alarms,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Dialect string `yaml:"dialect"` // sqlite, postgres, mysql, memory
	DSN     string `yaml:"dsn,omitempty"`
}

// EncryptionConfig selects where the encryption key comes from.
type EncryptionConfig struct {
	KeyEnv         string `yaml:"keyEnv,omitempty"`
	KeyringService string `yaml:"keyringService,omitempty"`
	KeyringAccount string `yaml:"keyringAccount,omitempty"`
}

// CatalogConfig points at extra provider definitions.
type CatalogConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// AlarmsConfig sets where continuity alarms are recorded.
type AlarmsConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// Load reads and validates a definition file. A missing file yields the
// defaults: an in-memory store and alarms under ~/.credvault.
func Load(path string) (*Definition, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, cverrors.Wrap(cverrors.TypeInvalidConfig,
			"check that "+path+" is readable", err, "reading configuration")
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, cverrors.Wrap(cverrors.TypeInvalidConfig,
			"fix the YAML syntax in "+path, err, "parsing configuration")
	}

	applyDefaults(&def)
	if err := validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Definition {
	def := &Definition{Version: 1}
	applyDefaults(def)
	return def
}

func applyDefaults(def *Definition) {
	if def.Version == 0 {
		def.Version = 1
	}
	if def.Store.Dialect == "" {
		def.Store.Dialect = "memory"
	}
	if def.Alarms.Dir == "" {
		def.Alarms.Dir = defaultAlarmDir()
	}
}

func defaultAlarmDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".credvault")
	}
	return filepath.Join(os.TempDir(), "credvault")
}

func validate(def *Definition) error {
	if def.Version != 1 {
		return cverrors.New(cverrors.TypeInvalidConfig,
			"set version: 1", "unsupported configuration version %d", def.Version)
	}

	switch def.Store.Dialect {
	case "memory":
	case "sqlite", "postgres", "mysql":
		if def.Store.DSN == "" {
			return cverrors.New(cverrors.TypeInvalidConfig,
				fmt.Sprintf("set store.dsn for the %s backend", def.Store.Dialect),
				"store dialect %q requires a dsn", def.Store.Dialect)
		}
	default:
		return cverrors.New(cverrors.TypeInvalidConfig,
			"use one of: memory, sqlite, postgres, mysql",
			"unknown store dialect %q", def.Store.Dialect)
	}

	return nil
}
