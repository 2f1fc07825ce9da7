// Package config loads the signaling server configuration from YAML with
// MLEDGER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MLEDGER_"

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
		TLS  struct {
			SelfSigned bool     `yaml:"self_signed"`
			Hosts      []string `yaml:"hosts"`
		} `yaml:"tls"`
	} `yaml:"server"`

	Store struct {
		// memory | leveldb
		Driver   string        `yaml:"driver"`
		Path     string        `yaml:"path"`
		OfferTTL time.Duration `yaml:"offer_ttl"`
	} `yaml:"store"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	ICE struct {
		URLs []string `yaml:"urls"`
	} `yaml:"ice"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.Server.Addr = ":8787"
	c.Store.Driver = "memory"
	c.Store.Path = "mledger-signaling.db"
	c.Store.OfferTTL = 30 * time.Minute
	c.Log.Level = "info"
	c.ICE.URLs = []string{"stun:stun.l.google.com:19302"}
	return c
}

// LoadEnv loads the given dotenv files into the process environment. Missing
// files are skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok, err := getEnvBool("SERVER_TLS_SELF_SIGNED"); err != nil {
		return err
	} else if ok {
		c.Server.TLS.SelfSigned = v
	}
	if v, ok := getEnvCSV("SERVER_TLS_HOSTS"); ok {
		c.Server.TLS.Hosts = v
	}
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok, err := getEnvDur("STORE_OFFER_TTL"); err != nil {
		return err
	} else if ok {
		c.Store.OfferTTL = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvCSV("ICE_URLS"); ok {
		c.ICE.URLs = v
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	switch c.Store.Driver {
	case "memory":
	case "leveldb":
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for leveldb")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.OfferTTL < 0 {
		return errors.New("config: store.offer_ttl must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func getEnvBool(key string) (bool, bool, error) {
	v, ok := getEnvStr(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return b, true, nil
}

func getEnvDur(key string) (time.Duration, bool, error) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return d, true, nil
}

func getEnvCSV(key string) ([]string, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
