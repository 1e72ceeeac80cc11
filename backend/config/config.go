package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type DB struct {
	Driver string
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
	// Path is the SQLite file used when Driver is "sqlite".
	Path string
}

type HTTP struct {
	Host string
	Port int
}

func (h HTTP) Addr() string { return fmt.Sprintf("%s:%d", h.Host, h.Port) }

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Admin struct {
	Username string
	Password string
}

// Settings are the values operators may change while the server runs.
type Settings struct {
	AutoApproveDevices      bool `json:"auto_approve_devices"`
	SweepIntervalSeconds    int  `json:"sweep_interval_seconds"`
	DefaultActionTTLSeconds int  `json:"default_action_ttl_seconds"`
	MaxActionTTLSeconds     int  `json:"max_action_ttl_seconds"`
	ActionPollingEnabled    bool `json:"action_polling_enabled"`
	LongPollSeconds         int  `json:"long_poll_seconds"`
	RequireDeviceToken      bool `json:"require_device_token"`
}

type Config struct {
	HTTP  HTTP
	DB    DB
	Redis Redis
	JWT   struct {
		Secret string
		Issuer string
		ExpMin int
	}
	// CommandSecret keys the HMAC over every RemoteCommand.
	CommandSecret string
	Admin         Admin
	Settings      Settings
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PATCHPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.host", "0.0.0.0")
	v.SetDefault("backend.port", 8080)
	v.SetDefault("backend.db.driver", "sqlite")
	v.SetDefault("backend.db.path", "patchpilot.db")
	v.SetDefault("backend.db.host", "127.0.0.1")
	v.SetDefault("backend.db.port", 3306)
	v.SetDefault("backend.db.user", "root")
	v.SetDefault("backend.db.pass", "")
	v.SetDefault("backend.db.name", "patchpilot")
	v.SetDefault("backend.redis.addr", "")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.admin.username", "admin")
	v.SetDefault("backend.admin.password", "admin")
	v.SetDefault("backend.settings.auto_approve_devices", false)
	v.SetDefault("backend.settings.sweep_interval_seconds", 30)
	v.SetDefault("backend.settings.default_action_ttl_seconds", 3600)
	v.SetDefault("backend.settings.max_action_ttl_seconds", 86400)
	v.SetDefault("backend.settings.action_polling_enabled", true)
	v.SetDefault("backend.settings.long_poll_seconds", 30)
	v.SetDefault("backend.settings.require_device_token", false)
	return v
}

func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		HTTP: HTTP{Host: v.GetString("backend.host"), Port: v.GetInt("backend.port")},
		DB: DB{
			Driver: v.GetString("backend.db.driver"),
			Host:   v.GetString("backend.db.host"),
			Port:   v.GetInt("backend.db.port"),
			User:   v.GetString("backend.db.user"),
			Pass:   v.GetString("backend.db.pass"),
			Name:   v.GetString("backend.db.name"),
			Path:   v.GetString("backend.db.path"),
		},
		Redis: Redis{
			Addr:     v.GetString("backend.redis.addr"),
			Password: v.GetString("backend.redis.password"),
			DB:       v.GetInt("backend.redis.db"),
		},
		Admin: Admin{
			Username: v.GetString("backend.admin.username"),
			Password: v.GetString("backend.admin.password"),
		},
		Settings: settingsFrom(v),
	}
	cfg.JWT.Secret = v.GetString("backend.jwt.secret")
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	cfg.JWT.Issuer = v.GetString("backend.jwt.issuer")
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "patchpilot"
	}
	cfg.JWT.ExpMin = v.GetInt("backend.jwt.exp_min")
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	cfg.CommandSecret = v.GetString("backend.command_secret")
	if cfg.CommandSecret == "" {
		cfg.CommandSecret = "dev-command-secret"
	}
	return cfg
}

func settingsFrom(v *viper.Viper) Settings {
	return Settings{
		AutoApproveDevices:      v.GetBool("backend.settings.auto_approve_devices"),
		SweepIntervalSeconds:    v.GetInt("backend.settings.sweep_interval_seconds"),
		DefaultActionTTLSeconds: v.GetInt("backend.settings.default_action_ttl_seconds"),
		MaxActionTTLSeconds:     v.GetInt("backend.settings.max_action_ttl_seconds"),
		ActionPollingEnabled:    v.GetBool("backend.settings.action_polling_enabled"),
		LongPollSeconds:         v.GetInt("backend.settings.long_poll_seconds"),
		RequireDeviceToken:      v.GetBool("backend.settings.require_device_token"),
	}
}

// Watch re-reads the settings block whenever the config file changes and
// hands the result to apply. Only Settings are hot; everything else needs a
// restart.
func Watch(path string, apply func(Settings), onErr func(error)) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if onErr != nil {
			onErr(fmt.Errorf("read config: %w", err))
		}
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		apply(settingsFrom(v))
	})
	v.WatchConfig()
}
