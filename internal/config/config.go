package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"

	DefaultPort       = "9879"
	DefaultBackendURL = "https://kitsu.app"
)

// Storage backends
const (
	StorageFS       = "fs"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageDynamoDB = "dynamodb"
	StorageKeychain = "keychain"
	StorageKV       = "kv"
)

type Config struct {
	// BackendURL is the Kitsune origin serving /graphql and /oauth/*
	BackendURL string `yaml:"backend_url"`
	// PublicURL is where this proxy is reachable; the OAuth callback lives under it.
	// Defaults to http://localhost:<port>.
	PublicURL string `yaml:"public_url"`
	Port      string `yaml:"port"`

	AppName    string `yaml:"app_name"`
	ClientAuth string `yaml:"client_auth"`
	// RefreshLeeway treats a token as expired this long before its recorded expiry
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`
	// RefreshLead is how early the background scheduler refreshes. Zero disables it.
	RefreshLead time.Duration `yaml:"refresh_lead"`

	AdminAPIKey string `yaml:"admin_api_key"`
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	Storage StorageConfig `yaml:"storage"`
}

type StorageConfig struct {
	Backend string         `yaml:"backend"`
	Dir     string         `yaml:"dir"`
	Redis   RedisConfig    `yaml:"redis"`
	Dynamo  DynamoDBConfig `yaml:"dynamodb"`
	// KVBinding names the Workers KV namespace binding
	KVBinding string `yaml:"kv_binding"`
	// KeychainService is the macOS keychain service name
	KeychainService string `yaml:"keychain_service"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		BackendURL:  DefaultBackendURL,
		Port:        DefaultPort,
		ClientAuth:  "header",
		RefreshLead: 5 * time.Minute,
		LogLevel:    "info",
		Storage: StorageConfig{
			Backend:         StorageFS,
			Dir:             storage.ConfigDir(),
			KVBinding:       storage.DefaultKVBinding,
			KeychainService: storage.DefaultKeychainService,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: storage.DefaultRedisPrefix,
			},
		},
	}
}

// DefaultPath is the config file read when no path is given
func DefaultPath() string {
	return filepath.Join(storage.ConfigDir(), configFileName)
}

// Load reads defaults, then the YAML file at path, then environment
// overrides. An empty path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
	}

	return cfg.finish(getenv)
}

// FromEnv builds the configuration from defaults and the environment only.
// Workers have no filesystem and read their vars through it.
func FromEnv(getenv func(string) string) (Config, error) {
	return Default().finish(getenv)
}

func (cfg Config) finish(getenv func(string) string) (Config, error) {
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	str("KITSUNE_BACKEND_URL", &c.BackendURL)
	str("KITSUNE_PUBLIC_URL", &c.PublicURL)
	str("PORT", &c.Port)
	str("KITSUNE_APP_NAME", &c.AppName)
	str("KITSUNE_CLIENT_AUTH", &c.ClientAuth)
	str("ADMIN_API_KEY", &c.AdminAPIKey)
	str("ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	str("KITSUNE_STORAGE", &c.Storage.Backend)
	str("KITSUNE_STORAGE_DIR", &c.Storage.Dir)
	str("KITSUNE_KV_BINDING", &c.Storage.KVBinding)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("DYNAMODB_TABLE", &c.Storage.Dynamo.Table)
	str("DYNAMODB_REGION", &c.Storage.Dynamo.Region)
	str("DYNAMODB_ENDPOINT", &c.Storage.Dynamo.Endpoint)

	if v := getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Storage.Redis.DB = db
	}
	for key, dst := range map[string]*time.Duration{
		"KITSUNE_REFRESH_LEEWAY": &c.RefreshLeeway,
		"KITSUNE_REFRESH_LEAD":   &c.RefreshLead,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"backend_url": c.BackendURL, "public_url": c.PublicURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}

	switch strings.ToLower(c.ClientAuth) {
	case "header", "params":
	default:
		return fmt.Errorf("client_auth must be header or params, got %q", c.ClientAuth)
	}
	if c.RefreshLeeway < 0 || c.RefreshLead < 0 {
		return errors.New("refresh durations must not be negative")
	}

	switch c.Storage.Backend {
	case StorageFS:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the fs backend")
		}
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("redis addr is required for the redis backend")
		}
	case StorageDynamoDB:
		if c.Storage.Dynamo.Table == "" {
			return errors.New("dynamodb table is required for the dynamodb backend")
		}
	case StorageMemory, StorageKeychain, StorageKV:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
