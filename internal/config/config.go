package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	ListenAddr           string        `env:"LISTEN_ADDR,default=127.0.0.1:8080"`
	APIBaseURL           string        `env:"API_BASE_URL,default=http://localhost:8083"`
	APITimeout           time.Duration `env:"API_TIMEOUT,default=0s"`
	SessionStore         string        `env:"SESSION_STORE,default=file"`
	SessionFile          string        `env:"SESSION_FILE,default=.calcweb/session.json"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	RedisURL             string        `env:"REDIS_URL"`
	SessionEncryptionKey string        `env:"SESSION_ENCRYPTION_KEY"`
	RecordsDebounce      time.Duration `env:"RECORDS_DEBOUNCE,default=500ms"`
	OperationsFile       string        `env:"OPERATIONS_FILE"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	LogFormat            string        `env:"LOG_FORMAT,default=text"`
}

// FakeAPIConfig configures the local stand-in for the calculator service.
type FakeAPIConfig struct {
	ListenAddr     string `env:"FAKEAPI_LISTEN_ADDR,default=127.0.0.1:8083"`
	JWTSecret      string `env:"FAKEAPI_JWT_SECRET,default=change-this-secret"`
	Users          string `env:"FAKEAPI_USERS,default=user@example.com:password"`
	InitialBalance string `env:"FAKEAPI_INITIAL_BALANCE,default=100"`
	OperationsFile string `env:"OPERATIONS_FILE"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogFormat      string `env:"LOG_FORMAT,default=text"`
}

func Load() (Config, error) {
	var cfg Config
	if err := decode(&cfg); err != nil {
		return Config{}, err
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	switch cfg.SessionStore {
	case StoreFile:
		if cfg.SessionFile == "" {
			return Config{}, errors.New("SESSION_FILE is required for the file session store")
		}
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres session store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL is required for the redis session store")
		}
	default:
		return Config{}, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
	if cfg.RecordsDebounce < 0 {
		return Config{}, fmt.Errorf("RECORDS_DEBOUNCE must not be negative, got %s", cfg.RecordsDebounce)
	}
	return cfg, nil
}

func LoadFakeAPI() (FakeAPIConfig, error) {
	var cfg FakeAPIConfig
	if err := decode(&cfg); err != nil {
		return FakeAPIConfig{}, err
	}
	if _, err := ParseUsers(cfg.Users); err != nil {
		return FakeAPIConfig{}, err
	}
	return cfg, nil
}

// ParseUsers splits "user:password,other:secret" into a username → password map.
func ParseUsers(raw string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid FAKEAPI_USERS entry %q", pair)
		}
		users[name] = password
	}
	if len(users) == 0 {
		return nil, errors.New("FAKEAPI_USERS must name at least one user")
	}
	return users, nil
}

func decode(target interface{}) error {
	err := envdecode.Decode(target)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse API_BASE_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
