package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.sgbd/sgbd.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Catalog CatalogConfig `yaml:"catalog"`
	Alter   AlterConfig   `yaml:"alter,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
}

// CatalogConfig defines the managed database server connection.
type CatalogConfig struct {
	Dialect        string            `yaml:"dialect"` // sqlserver, postgres or oracle
	Host           string            `yaml:"host"`
	Port           int               `yaml:"port,omitempty"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	Database       string            `yaml:"database,omitempty"` // used when a request names none
	Schema         string            `yaml:"schema,omitempty"`
	MaxConnections int               `yaml:"max_connections,omitempty"` // default 10, max 50
	Params         map[string]string `yaml:"params,omitempty"`
}

// AlterConfig tunes how alteration plans are executed.
type AlterConfig struct {
	Transactional     *bool `yaml:"transactional,omitempty"` // default true
	Compensate        *bool `yaml:"compensate,omitempty"`    // default true
	StrictResolution  bool  `yaml:"strict_resolution,omitempty"`
	SkipUnchangedType bool  `yaml:"skip_unchanged_type,omitempty"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port    int  `yaml:"port,omitempty"` // default 8230
	DevMode bool `yaml:"dev_mode,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.sgbd/logs/
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string            `yaml:"backend,omitempty"` // none, prometheus or datadog
	PushgatewayURL string            `yaml:"pushgateway_url,omitempty"`
	StatsdAddr     string            `yaml:"statsd_addr,omitempty"`
	Namespace      string            `yaml:"namespace,omitempty"`
	Tags           map[string]string `yaml:"tags,omitempty"`
}

// JournalConfig selects where executed steps and their inverses are recorded.
type JournalConfig struct {
	Sink          string `yaml:"sink,omitempty"` // none, file, mongodb or s3
	Path          string `yaml:"path,omitempty"`
	MongoURI      string `yaml:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty"`
	S3Bucket      string `yaml:"s3_bucket,omitempty"`
	S3Prefix      string `yaml:"s3_prefix,omitempty"`
	Region        string `yaml:"region,omitempty"`
}

// UseTransaction reports whether plans should run inside one transaction.
func (a AlterConfig) UseTransaction() bool { return a.Transactional == nil || *a.Transactional }

// UseCompensation reports whether completed steps are reverted on failure
// when no transaction protects the plan.
func (a AlterConfig) UseCompensation() bool { return a.Compensate == nil || *a.Compensate }

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(context.Background()); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	c.Catalog.Dialect = strings.ToLower(strings.TrimSpace(c.Catalog.Dialect))
	if c.Catalog.Dialect == "" {
		c.Catalog.Dialect = "sqlserver"
	}
	if c.Catalog.Port == 0 {
		switch c.Catalog.Dialect {
		case "postgres":
			c.Catalog.Port = 5432
		case "oracle":
			c.Catalog.Port = 1521
		default:
			c.Catalog.Port = 1433
		}
	}
	if c.Catalog.Dialect == "postgres" && c.Catalog.Schema == "" {
		c.Catalog.Schema = "public"
	}
	if c.Catalog.MaxConnections == 0 {
		c.Catalog.MaxConnections = 10
	}
	if c.Catalog.MaxConnections > 50 {
		c.Catalog.MaxConnections = 50
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8230
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.sgbd/logs/")
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = "none"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "sgbd"
	}
	if c.Journal.Sink == "" {
		c.Journal.Sink = "none"
	}
	if c.Journal.Sink == "file" && c.Journal.Path == "" {
		c.Journal.Path = ExpandHome("~/.sgbd/journal.yaml")
	}
	if c.Journal.MongoDatabase == "" {
		c.Journal.MongoDatabase = "sgbd"
	}
}

// Validate checks enumerated settings and required fields.
func (c *Config) Validate() error {
	switch c.Catalog.Dialect {
	case "sqlserver", "mssql", "postgres", "oracle":
	default:
		return fmt.Errorf("catalog.dialect %q is not supported", c.Catalog.Dialect)
	}
	if c.Catalog.Host == "" {
		return fmt.Errorf("catalog.host is required")
	}
	switch c.Metrics.Backend {
	case "none", "prometheus", "datadog":
	default:
		return fmt.Errorf("metrics.backend %q is not supported", c.Metrics.Backend)
	}
	switch c.Journal.Sink {
	case "none", "file":
	case "mongodb":
		if c.Journal.MongoURI == "" {
			return fmt.Errorf("journal.mongo_uri is required for the mongodb sink")
		}
	case "s3":
		if c.Journal.S3Bucket == "" {
			return fmt.Errorf("journal.s3_bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("journal.sink %q is not supported", c.Journal.Sink)
	}
	return nil
}

// DSN builds the driver connection string for the catalog.
func (c CatalogConfig) DSN() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	u := &url.URL{Host: hostPort, User: url.UserPassword(c.Username, c.Password)}
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	switch c.Dialect {
	case "postgres":
		u.Scheme = "postgres"
		u.Path = "/" + c.Database
	case "oracle":
		u.Scheme = "oracle"
		u.Path = "/" + c.Database
	default:
		u.Scheme = "sqlserver"
		if c.Database != "" {
			q.Set("database", c.Database)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Masked returns a copy safe to print: credentials are replaced.
func (c Config) Masked() Config {
	if c.Catalog.Password != "" {
		c.Catalog.Password = "********"
	}
	if c.Journal.MongoURI != "" {
		if u, err := url.Parse(c.Journal.MongoURI); err == nil && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), "********")
			c.Journal.MongoURI = u.String()
		}
	}
	return c
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets(ctx context.Context) error {
	var err error
	c.Catalog.Password, err = ResolveValue(ctx, c.Catalog.Password)
	if err != nil {
		return fmt.Errorf("catalog password: %w", err)
	}
	c.Journal.MongoURI, err = ResolveValue(ctx, c.Journal.MongoURI)
	if err != nil {
		return fmt.Errorf("journal mongo_uri: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(ctx context.Context, val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ctx, ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ctx, ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
