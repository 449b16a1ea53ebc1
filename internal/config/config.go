package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the fan-out router process. Routing
// rules live in a separate modules document (see Modules.File).
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Poll     PollConfig     `toml:"poll"`
	Ops      OpsConfig      `toml:"ops"`
	Modules  ModulesConfig  `toml:"modules"`
}

type TelegramConfig struct {
	Token  string `toml:"token"`
	APIURL string `toml:"api_url"`
}

type PollConfig struct {
	Timeout   int   `toml:"timeout"`    // long-poll bound, seconds
	IdleDelay int   `toml:"idle_delay"` // seconds after an empty batch
	Backoff   int   `toml:"backoff"`    // seconds after a failed fetch
	Offset    int64 `toml:"offset"`     // starting cursor
}

type OpsConfig struct {
	Addr            string `toml:"addr"`
	DispatchTimeout int    `toml:"dispatch_timeout"` // per-consumer POST bound, seconds
}

type ModulesConfig struct {
	File string `toml:"file"`
}

func defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		Poll: PollConfig{
			Timeout:   25,
			IdleDelay: 1,
			Backoff:   3,
		},
		Ops: OpsConfig{
			Addr:            ":18800",
			DispatchTimeout: 10,
		},
		Modules: ModulesConfig{
			File: "modules-conf.yml",
		},
	}
}

// Load reads configuration from the TOML config file (if it exists) and
// applies environment variable overrides. Env vars always win.
//
// Config file resolution: TGFANOUT_CONFIG env var → ~/.config/telegram-fanout/config.toml → skip.
func Load() (*Config, error) {
	cfg := defaults()

	path := configPath()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func configPath() string {
	if p := os.Getenv("TGFANOUT_CONFIG"); p != "" {
		return expandHome(p)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "telegram-fanout", "config.toml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TGFANOUT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TGFANOUT_API_URL"); v != "" {
		cfg.Telegram.APIURL = v
	}

	if v := os.Getenv("TGFANOUT_POLL_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.Timeout = n
		}
	}
	if v := os.Getenv("TGFANOUT_IDLE_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.IdleDelay = n
		}
	}
	if v := os.Getenv("TGFANOUT_BACKOFF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.Backoff = n
		}
	}
	if v := os.Getenv("TGFANOUT_OFFSET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Poll.Offset = n
		}
	}

	if v := os.Getenv("TGFANOUT_OPS_ADDR"); v != "" {
		cfg.Ops.Addr = v
	}
	if v := os.Getenv("TGFANOUT_DISPATCH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ops.DispatchTimeout = n
		}
	}

	if v := os.Getenv("TGFANOUT_MODULES_FILE"); v != "" {
		cfg.Modules.File = expandHome(v)
	}
}

// Validate clamps out-of-range values back to defaults. The Bot API caps the
// long-poll timeout at 50 seconds.
func (c *Config) Validate() error {
	if c.Poll.Timeout < 0 || c.Poll.Timeout > 50 {
		c.Poll.Timeout = 25
	}
	if c.Poll.IdleDelay < 0 {
		c.Poll.IdleDelay = 1
	}
	if c.Poll.Backoff < 1 {
		c.Poll.Backoff = 3
	}
	if c.Poll.Offset < 0 {
		c.Poll.Offset = 0
	}
	if c.Ops.DispatchTimeout < 1 {
		c.Ops.DispatchTimeout = 10
	}
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
