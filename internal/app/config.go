package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/genodch/pilltrack/internal/engine"
	"github.com/genodch/pilltrack/internal/push"
)

// Config represents the runtime configuration for the pilltrack backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Push       PushConfig       `mapstructure:"push"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// EngineConfig holds the notification engine tunables and the trigger secret.
type EngineConfig struct {
	// CronSecret is the shared bearer secret the external scheduler presents
	// on the trigger endpoint.
	CronSecret string `mapstructure:"cron_secret"`

	EscalationOffsets []int         `mapstructure:"escalation_offsets"`
	PartnerAlertDelay time.Duration `mapstructure:"partner_alert_delay"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`

	ReminderURL     string `mapstructure:"reminder_url"`
	PartnerAlertURL string `mapstructure:"partner_alert_url"`

	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// ScheduleConfig toggles the in-process cron trigger.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// PushConfig carries Web Push VAPID credentials.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EngineSettings maps the configuration onto the engine's own config type.
func (c EngineConfig) EngineSettings() engine.Config {
	return engine.Config{
		EscalationOffsets: c.EscalationOffsets,
		PartnerAlertDelay: c.PartnerAlertDelay,
		RunTimeout:        c.RunTimeout,
		ReminderURL:       c.ReminderURL,
		PartnerAlertURL:   c.PartnerAlertURL,
	}
}

// WebPushSettings maps the configuration onto the delivery adapter config.
func (c PushConfig) WebPushSettings() push.WebPushConfig {
	return push.WebPushConfig{
		VAPIDPublicKey:  c.VAPIDPublicKey,
		VAPIDPrivateKey: c.VAPIDPrivateKey,
		Subscriber:      c.Subscriber,
		TTLSeconds:      c.TTLSeconds,
	}
}

// Validate checks invariants that cannot wait until first use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.CronSecret) == "" {
		return errors.New("engine.cron_secret must be configured")
	}
	for i := 1; i < len(c.Engine.EscalationOffsets); i++ {
		if c.Engine.EscalationOffsets[i] <= c.Engine.EscalationOffsets[i-1] {
			return errors.New("engine.escalation_offsets must be strictly ascending")
		}
	}
	return nil
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PILLTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/pilltrack.sqlite")

	v.SetDefault("engine.escalation_offsets", []int{0, 15, 30, 60})
	v.SetDefault("engine.partner_alert_delay", "90m")
	v.SetDefault("engine.run_timeout", "2m")
	v.SetDefault("engine.reminder_url", "/home")
	v.SetDefault("engine.partner_alert_url", "/partner")
	v.SetDefault("engine.schedule.enabled", false)
	v.SetDefault("engine.schedule.spec", "*/5 * * * *")

	v.SetDefault("push.ttl_seconds", 300)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
