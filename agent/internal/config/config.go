package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Update struct {
	ReleaseURL    string
	AssetName     string
	HelperPath    string
	CheckInterval time.Duration
}

type AppConfig struct {
	ServerURL     string
	CommandSecret string
	LogPath       string
	DeviceIDPath  string
	TokenPath     string
	ScriptsDir    string
	ExecAllowlist []string
	AllowShell    bool
	MaxConcurrent int

	DefaultTimeout    time.Duration
	LongPollTimeout   time.Duration
	PollInterval      time.Duration
	ErrorBackoff      time.Duration
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration

	Update Update
}

var (
	mu  sync.RWMutex
	cfg AppConfig
)

// baseDir is the fixed per-OS directory holding the device id and scripts.
func baseDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\PatchPilot`
	}
	return "/opt/patchpilot_client"
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile("config/config.yaml")
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PATCHPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("agent.server_url", "http://127.0.0.1:9400")
	v.SetDefault("agent.command_secret", "")
	v.SetDefault("agent.log_path", "")
	v.SetDefault("agent.device_id_path", filepath.Join(baseDir(), "device_id"))
	v.SetDefault("agent.token_path", filepath.Join(baseDir(), "device_token"))
	v.SetDefault("agent.scripts_dir", filepath.Join(baseDir(), "scripts"))
	v.SetDefault("agent.exec_allowlist", []string{})
	v.SetDefault("agent.allow_shell", true)
	v.SetDefault("agent.max_concurrent", 2)
	v.SetDefault("agent.default_timeout_secs", 300)
	v.SetDefault("agent.long_poll_timeout_secs", 60)
	v.SetDefault("agent.poll_interval_secs", 5)
	v.SetDefault("agent.error_backoff_secs", 5)
	v.SetDefault("agent.heartbeat_interval_secs", 10)
	v.SetDefault("agent.request_timeout_secs", 15)
	v.SetDefault("agent.update.release_url", "")
	v.SetDefault("agent.update.asset_name", "")
	v.SetDefault("agent.update.helper_path", "")
	v.SetDefault("agent.update.check_interval", "6h")
	return v
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Second
}

// Init loads the agent configuration. A .env file beside the working
// directory is honoured before environment overrides are read; a missing
// config file leaves the defaults in place.
func Init(path string) (AppConfig, error) {
	_ = godotenv.Load()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return AppConfig{}, err
		}
	}

	c := AppConfig{
		ServerURL:         strings.TrimRight(v.GetString("agent.server_url"), "/"),
		CommandSecret:     v.GetString("agent.command_secret"),
		LogPath:           v.GetString("agent.log_path"),
		DeviceIDPath:      v.GetString("agent.device_id_path"),
		TokenPath:         v.GetString("agent.token_path"),
		ScriptsDir:        v.GetString("agent.scripts_dir"),
		ExecAllowlist:     v.GetStringSlice("agent.exec_allowlist"),
		AllowShell:        v.GetBool("agent.allow_shell"),
		MaxConcurrent:     v.GetInt("agent.max_concurrent"),
		DefaultTimeout:    seconds(v, "agent.default_timeout_secs"),
		LongPollTimeout:   seconds(v, "agent.long_poll_timeout_secs"),
		PollInterval:      seconds(v, "agent.poll_interval_secs"),
		ErrorBackoff:      seconds(v, "agent.error_backoff_secs"),
		HeartbeatInterval: seconds(v, "agent.heartbeat_interval_secs"),
		RequestTimeout:    seconds(v, "agent.request_timeout_secs"),
		Update: Update{
			ReleaseURL:    v.GetString("agent.update.release_url"),
			AssetName:     v.GetString("agent.update.asset_name"),
			HelperPath:    v.GetString("agent.update.helper_path"),
			CheckInterval: v.GetDuration("agent.update.check_interval"),
		},
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.Update.HelperPath == "" {
		name := "patchpilot-updater"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		c.Update.HelperPath = filepath.Join(baseDir(), name)
	}

	mu.Lock()
	cfg = c
	mu.Unlock()
	return c, nil
}

func Get() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
