package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded from a yaml file
// with environment-variable overrides for deployment-specific values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Tenants   []Tenant        `yaml:"tenants"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DBConfig holds database connection settings
type DBConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LifecycleConfig controls order state machine behavior.
// StrictTransitions enforces the forward-only transition table on
// advance-status requests; permissive mode (the default) only validates
// that the target status is a known value, so staff can skip steps.
type LifecycleConfig struct {
	StrictTransitions bool `yaml:"strict_transitions"`
}

// Tenant is one restaurant's entry in the routing registry. Host is matched
// against the inbound Host header; ID partitions every table.
type Tenant struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	ThemeColor string `yaml:"theme_color"`
	Default    bool   `yaml:"default"`
}

// Load reads the yaml config at path, then applies environment overrides.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 5555, ShutdownTimeout: 10 * time.Second},
		DB: DBConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "password",
			Name:            "brigade",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Log:     LogConfig{Level: "info", Environment: "development"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSL_MODE", cfg.DB.SSLMode)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Environment = getEnv("APP_ENV", cfg.Log.Environment)
	if v, ok := os.LookupEnv("STRICT_TRANSITIONS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Lifecycle.StrictTransitions = b
		}
	}
}

func (c *Config) validate() error {
	if len(c.Tenants) == 0 {
		return fmt.Errorf("config: at least one tenant must be registered")
	}
	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.ID == "" || t.Host == "" {
			return fmt.Errorf("config: tenant entries require id and host")
		}
		if seen[t.ID] {
			return fmt.Errorf("config: duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Registry builds the tenant lookup used by the router middleware
func (c *Config) Registry() *TenantRegistry {
	return NewTenantRegistry(c.Tenants)
}

// TenantRegistry resolves hosts and ids to registered tenants. The mapping
// is fixed at startup; requests never mutate it.
type TenantRegistry struct {
	byHost      map[string]Tenant
	bySubdomain map[string]Tenant
	byID        map[string]Tenant
	fallback    Tenant
	hasFallback bool
}

// NewTenantRegistry indexes the configured tenants for lookup
func NewTenantRegistry(tenants []Tenant) *TenantRegistry {
	r := &TenantRegistry{
		byHost:      make(map[string]Tenant, len(tenants)),
		bySubdomain: make(map[string]Tenant, len(tenants)),
		byID:        make(map[string]Tenant, len(tenants)),
	}
	for _, t := range tenants {
		r.byHost[t.Host] = t
		r.bySubdomain[subdomain(t.Host)] = t
		r.byID[t.ID] = t
		if t.Default && !r.hasFallback {
			r.fallback = t
			r.hasFallback = true
		}
	}
	return r
}

// ResolveHost maps an inbound Host header to a tenant, trying the exact
// host first and the subdomain second
func (r *TenantRegistry) ResolveHost(host string) (Tenant, bool) {
	if t, ok := r.byHost[host]; ok {
		return t, true
	}
	if t, ok := r.bySubdomain[subdomain(host)]; ok {
		return t, true
	}
	if r.hasFallback {
		return r.fallback, true
	}
	return Tenant{}, false
}

// ResolveID maps a tenant id to its registered entry
func (r *TenantRegistry) ResolveID(id string) (Tenant, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// subdomain extracts the leading host label, dropping any port
func subdomain(host string) string {
	host = strings.Split(host, ":")[0]
	return strings.Split(host, ".")[0]
}

// Helper to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
