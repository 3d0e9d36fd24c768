// Package catalogconfig loads process configuration from YAML files and
// environment variables via viper, grounded on internal/auth/config.go
// and internal/common/configuration.go, which
// carried near-identical loaders for the same three-function shape
// (LoadConfig / setDefaults / PrintConfiguration). This merges them into
// one loader for the catalog core's own sections.
package catalogconfig

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// Config is the complete configuration for the catalogd process.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres" json:"postgres"`
	Mongo     MongoConfig     `mapstructure:"mongo" json:"mongo"`
	Cors      CorsConfig      `mapstructure:"cors" json:"cors"`
	Lock      LockConfig      `mapstructure:"lock" json:"lock"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Daemon    DaemonConfig    `mapstructure:"daemon" json:"daemon"`
}

// ServerConfig contains the ops-only HTTP surface's settings (§1.5 —
// health and debug endpoints; resource CRUD routes are out of scope).
type ServerConfig struct {
	Port        int    `mapstructure:"port" json:"port"`
	ContextPath string `mapstructure:"contextPath" json:"contextPath"`
}

// PostgresConfig backs the primary Metadata Adaptor implementation.
type PostgresConfig struct {
	Host                   string `mapstructure:"host" json:"host"`
	Port                   int    `mapstructure:"port" json:"port"`
	User                   string `mapstructure:"user" json:"user"`
	Password               string `mapstructure:"password" json:"password"`
	DBName                 string `mapstructure:"dbname" json:"dbname"`
	MaxOpenConnections     int    `mapstructure:"maxOpenConnections" json:"maxOpenConnections"`
	MaxIdleConnections     int    `mapstructure:"maxIdleConnections" json:"maxIdleConnections"`
	ConnMaxLifetimeMinutes int    `mapstructure:"connMaxLifetimeMinutes" json:"connMaxLifetimeMinutes"`
}

// MongoConfig backs the batch-operation audit log store.
type MongoConfig struct {
	URI      string `mapstructure:"uri" json:"uri"`
	Database string `mapstructure:"database" json:"database"`
}

// CorsConfig configures the ops surface's CORS policy.
type CorsConfig struct {
	AllowedOrigins   []string `mapstructure:"allowedOrigins" json:"allowedOrigins"`
	AllowedMethods   []string `mapstructure:"allowedMethods" json:"allowedMethods"`
	AllowedHeaders   []string `mapstructure:"allowedHeaders" json:"allowedHeaders"`
	AllowCredentials bool     `mapstructure:"allowCredentials" json:"allowCredentials"`
}

// LockConfig holds the study-lock protocol's defaults (§4.4).
type LockConfig struct {
	DefaultDuration time.Duration `mapstructure:"defaultDuration" json:"defaultDuration"`
	DefaultTimeout  time.Duration `mapstructure:"defaultTimeout" json:"defaultTimeout"`
}

// SchedulerConfig holds the Job Scheduler Bridge's external binaries and
// queue table (§4.5).
type SchedulerConfig struct {
	SubmitBin  string            `mapstructure:"submitBin" json:"submitBin"`
	StatusBin  string            `mapstructure:"statusBin" json:"statusBin"`
	AcctBin    string            `mapstructure:"acctBin" json:"acctBin"`
	DefaultQueue string          `mapstructure:"defaultQueue" json:"defaultQueue"`
	ToolQueues map[string][]string `mapstructure:"toolQueues" json:"toolQueues"`
}

// DaemonConfig names the reserved "admin" principal (§3 Invariant D).
type DaemonConfig struct {
	PrincipalName string `mapstructure:"principalName" json:"principalName"`
}

// LoadConfig loads configuration with env vars taking precedence over the
// file, which takes precedence over defaults — same precedence order as
// the loader.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		log.Printf("loading config from file: %s", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Println("no config file provided, using environment variables and defaults")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	PrintConfiguration(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.contextPath", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "catalog")
	v.SetDefault("postgres.password", "catalog")
	v.SetDefault("postgres.dbname", "opencga_catalog")
	v.SetDefault("postgres.maxOpenConnections", 50)
	v.SetDefault("postgres.maxIdleConnections", 50)
	v.SetDefault("postgres.connMaxLifetimeMinutes", 5)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "opencga_catalog_audit")

	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowedMethods", []string{"GET"})
	v.SetDefault("cors.allowedHeaders", []string{"*"})
	v.SetDefault("cors.allowCredentials", false)

	v.SetDefault("lock.defaultDuration", 20*time.Second)
	v.SetDefault("lock.defaultTimeout", 10*time.Second)

	v.SetDefault("scheduler.submitBin", "qsub")
	v.SetDefault("scheduler.statusBin", "qstat")
	v.SetDefault("scheduler.acctBin", "qacct")
	v.SetDefault("scheduler.defaultQueue", "default.q")

	v.SetDefault("daemon.principalName", "admin")
}

// PrintConfiguration logs the loaded configuration with credentials
// redacted, matching the redact-then-marshal convention.
func PrintConfiguration(cfg *Config) {
	redacted := *cfg
	redacted.Postgres.Host = "****"
	redacted.Postgres.User = "****"
	redacted.Postgres.Password = "****"
	redacted.Mongo.URI = "****"

	b, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		log.Printf("unable to marshal configuration: %v", err)
		return
	}
	log.Printf("loaded configuration:\n%s", string(b))
}

// AddCors wires the configured CORS policy onto the ops router.
func AddCors(r *chi.Mux, cfg *Config) {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Cors.AllowedOrigins,
		AllowedMethods:   cfg.Cors.AllowedMethods,
		AllowedHeaders:   cfg.Cors.AllowedHeaders,
		AllowCredentials: cfg.Cors.AllowCredentials,
	})
	r.Use(c.Handler)
}
