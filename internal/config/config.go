// Package config loads the YAML configuration used by the topical binary.
package config

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/ids"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// EnvEncryptionKey overrides security.encryption_key so keys stay out of files.
const EnvEncryptionKey = "TOPICAL_ENCRYPTION_KEY"

// Config is the root of the configuration file.
type Config struct {
	LogLevel       string         `yaml:"log_level"`
	IDs            string         `yaml:"ids"`
	MaxSteps       int            `yaml:"max_steps"`
	PruneCompleted bool           `yaml:"prune_completed"`
	Store          StoreConfig    `yaml:"store"`
	Security       SecurityConfig `yaml:"security"`
	HTTP           HTTPConfig     `yaml:"http"`
	NATS           NATSConfig     `yaml:"nats"`
	MCP            MCPConfig      `yaml:"mcp"`
}

// StoreConfig selects and configures the conversation store.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	LockTTL time.Duration `yaml:"lock_ttl"`
	Redis   RedisConfig   `yaml:"redis"`
	Bolt    BoltConfig    `yaml:"bolt"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`

	// LockPrefix namespaces the conversation locks. Keep it outside Prefix.
	LockPrefix string `yaml:"lock_prefix"`
}

type BoltConfig struct {
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
}

// SecurityConfig configures the store middlewares.
type SecurityConfig struct {
	// EncryptionKey is 32 bytes, written as hex, base64 or raw text.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	PIIPatterns   []string `yaml:"pii_patterns"`
}

type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// NATSConfig enables the NATS transport when URL is set.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
	Queue  string `yaml:"queue"`
}

type MCPConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		IDs:      "sequential",
		Store: StoreConfig{
			Backend: BackendFile,
			Dir:     ".topical/conversations",
			LockTTL: 30 * time.Second,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "topical:conversation:", LockPrefix: "topical:"},
			Bolt:    BoltConfig{Path: ".topical/topical.db"},
		},
		HTTP: HTTPConfig{Addr: ":8080", Metrics: true},
		NATS: NATSConfig{Prefix: "topical", Queue: "topical"},
		MCP:  MCPConfig{Transport: "stdio", Port: 8081},
	}
}

// Load reads path on top of the defaults. An empty path yields the defaults.
// Environment overrides are applied last and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvEncryptionKey); key != "" {
		c.Security.EncryptionKey = key
	}
}

// Validate checks the values that would otherwise fail late, at startup.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := ids.Parse(c.IDs); err != nil {
		return err
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case BackendBolt:
		if c.Store.Bolt.Path == "" {
			return fmt.Errorf("store.bolt.path is required for the bolt backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}
	for _, p := range c.Security.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("pii_patterns: %w", err)
		}
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("unknown mcp transport %q", c.MCP.Transport)
	}
	return nil
}

// Keys decodes the encryption keys. A nil active key means encryption is off.
func (s SecurityConfig) Keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("fallback_keys require an encryption_key")
		}
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	fallback := make([][]byte, 0, len(s.FallbackKeys))
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("key must be 32 bytes (hex, base64 or raw)")
}
