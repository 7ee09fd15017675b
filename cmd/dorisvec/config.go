package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	dorisvec "github.com/hugr-lab/doris-vector-go"
	"github.com/hugr-lab/doris-vector-go/cache"
	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/flight"
	"github.com/hugr-lab/doris-vector-go/session"
	"github.com/hugr-lab/doris-vector-go/sqlexec"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

// Executor kinds accepted in the config file.
const (
	executorFlight = "flight"
	executorMySQL  = "mysql"
	executorDuckDB = "duckdb"
)

// Config defines CLI settings.
type Config struct {
	Executor     string         `yaml:"executor"`
	Address      string         `yaml:"address"`
	User         string         `yaml:"user"`
	Password     string         `yaml:"password"`
	Token        string         `yaml:"token"`
	TLS          bool           `yaml:"tls"`
	Dialect      string         `yaml:"dialect"`
	Path         string         `yaml:"path"`
	Database     string         `yaml:"database"`
	VectorColumn string         `yaml:"vectorColumn"`
	Metric       string         `yaml:"metric"`
	LogLevel     string         `yaml:"logLevel"`
	Sessions     map[string]any `yaml:"sessions"`
	Cache        CacheConfig    `yaml:"cache"`
}

// CacheConfig enables the result cache when Enabled is set.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Capacity int64         `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoadConfig loads configuration from a YAML file and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Executor: executorFlight,
		LogLevel: "warn",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrides := map[string]*string{
		"DORISVEC_EXECUTOR":  &cfg.Executor,
		"DORISVEC_ADDRESS":   &cfg.Address,
		"DORISVEC_USER":      &cfg.User,
		"DORISVEC_PASSWORD":  &cfg.Password,
		"DORISVEC_TOKEN":     &cfg.Token,
		"DORISVEC_PATH":      &cfg.Path,
		"DORISVEC_DATABASE":  &cfg.Database,
		"DORISVEC_LOG_LEVEL": &cfg.LogLevel,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Executor {
	case executorFlight, executorMySQL:
		if c.Address == "" {
			return fmt.Errorf("address is required for executor %q", c.Executor)
		}
	case executorDuckDB:
	default:
		return fmt.Errorf("unknown executor %q (want flight, mysql or duckdb)", c.Executor)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Dialect != "" {
		if c.Executor != executorFlight {
			return fmt.Errorf("dialect applies only to executor %q", executorFlight)
		}
		if _, ok := sqlgen.DialectByName(c.Dialect); !ok {
			return fmt.Errorf("unknown dialect %q", c.Dialect)
		}
	}
	if c.Metric != "" {
		if err := executor.Metric(c.Metric).Validate(); err != nil {
			return err
		}
	}
	if _, err := session.ParamsOf(c.Sessions); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default location for the CLI config file.
func DefaultConfigPath() string {
	if path := os.Getenv("DORISVEC_CONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	path := filepath.Join(home, ".dorisvec", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (c *Config) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openClient builds the executor stack and a client with the configured
// session parameters applied.
func openClient(cfg *Config, logger *slog.Logger) (*dorisvec.Client, error) {
	var (
		exec executor.Executor
		err  error
	)
	switch cfg.Executor {
	case executorFlight:
		fc := flight.Config{
			Address:  cfg.Address,
			Username: cfg.User,
			Password: cfg.Password,
			Token:    cfg.Token,
			Logger:   logger,
		}
		if cfg.TLS {
			fc.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if cfg.Dialect != "" {
			fc.Dialect, _ = sqlgen.DialectByName(cfg.Dialect)
		}
		exec, err = flight.NewExecutor(fc)
	case executorMySQL:
		dsn := sqlexec.DorisDSN(cfg.Address, cfg.User, cfg.Password, cfg.Database)
		exec, err = sqlexec.OpenDoris(dsn, sqlexec.Config{Logger: logger})
	case executorDuckDB:
		exec, err = sqlexec.OpenDuckDB(cfg.Path, sqlexec.Config{Logger: logger})
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		cached, err := cache.New(cache.Config{
			Executor: exec,
			Capacity: cfg.Cache.Capacity,
			TTL:      cfg.Cache.TTL,
			Logger:   logger,
		})
		if err != nil {
			closeExecutor(exec)
			return nil, err
		}
		exec = cached
	}

	client, err := dorisvec.NewClient(cfg.Database, dorisvec.Config{
		Executor:     exec,
		VectorColumn: cfg.VectorColumn,
		Metric:       executor.Metric(cfg.Metric),
		Logger:       logger,
	})
	if err != nil {
		closeExecutor(exec)
		return nil, err
	}

	params, err := session.ParamsOf(cfg.Sessions)
	if err != nil {
		client.Close()
		return nil, err
	}
	client.WithSessions(params)
	return client, nil
}

func closeExecutor(exec executor.Executor) {
	if c, ok := exec.(io.Closer); ok {
		c.Close()
	}
}
