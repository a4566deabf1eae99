package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		// Proxies (IPs or CIDRs) allowed to set X-Forwarded-For / X-Real-IP
		TrustedProxies []string `json:"trustedProxies"`
	} `json:"server"`
	Storage struct {
		Driver string `json:"driver"` // memory, mongodb or postgres
	} `json:"storage"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	RateLimit struct {
		Votes         int    `json:"votes"`
		WindowSeconds int    `json:"windowSeconds"`
		Prefix        string `json:"prefix"`
	} `json:"rateLimit"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	Admin struct {
		PasswordHash string `json:"passwordHash"` // bcrypt
		JWTSecret    string `json:"jwtSecret"`
		TokenTTL     int    `json:"tokenTtl"` // in minutes
	} `json:"admin"`
	Log struct {
		Level  string `json:"level"`
		Pretty bool   `json:"pretty"`
	} `json:"log"`
}

func Load(env string) (*Config, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		// Default to configs directory relative to working directory
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	return LoadFile(filepath.Join(configDir, filename), env)
}

// LoadFile reads a config file, expands ${VAR} references and applies defaults.
func LoadFile(configPath, env string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Replace environment variables in the config
	configStr := expandEnvVars(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(configStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Environment = env
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "ascii_arena"
	}
	// 10 votes per 60 seconds per IP
	if c.RateLimit.Votes == 0 {
		c.RateLimit.Votes = 10
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.RateLimit.Prefix == "" {
		c.RateLimit.Prefix = "ratelimit:vote"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the selected storage driver is fully configured.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mongodb":
		if c.MongoDB.URI == "" {
			return errors.New("mongodb.uri is required for the mongodb driver")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateLimit.Votes < 0 || c.RateLimit.WindowSeconds < 0 {
		return errors.New("rateLimit values must not be negative")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
// Bare $NAME is left alone so literal bcrypt hashes survive.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(ref)[1])
	})
}

func GetEnv() string {
	env := os.Getenv("ARENA_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
