package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TGFANOUT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Telegram.APIURL != "https://api.telegram.org" {
		t.Errorf("api url = %q", cfg.Telegram.APIURL)
	}
	if cfg.Poll.Timeout != 25 || cfg.Poll.IdleDelay != 1 || cfg.Poll.Backoff != 3 {
		t.Errorf("poll defaults = %+v", cfg.Poll)
	}
	if cfg.Ops.Addr != ":18800" {
		t.Errorf("ops addr = %q", cfg.Ops.Addr)
	}
	if cfg.Modules.File != "modules-conf.yml" {
		t.Errorf("modules file = %q", cfg.Modules.File)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[telegram]
token = "from-file"

[poll]
timeout = 40
offset = 1000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TGFANOUT_CONFIG", path)
	t.Setenv("TGFANOUT_TOKEN", "from-env")
	t.Setenv("TGFANOUT_BACKOFF", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	// Env beats file; file beats defaults.
	if cfg.Telegram.Token != "from-env" {
		t.Errorf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Poll.Timeout != 40 || cfg.Poll.Offset != 1000 {
		t.Errorf("file values not applied: %+v", cfg.Poll)
	}
	if cfg.Poll.Backoff != 9 {
		t.Errorf("backoff = %d, want 9", cfg.Poll.Backoff)
	}
}

func TestValidate_ClampsBadValues(t *testing.T) {
	cfg := &Config{
		Poll: PollConfig{Timeout: 500, IdleDelay: -1, Backoff: 0, Offset: -5},
		Ops:  OpsConfig{DispatchTimeout: 0},
	}
	cfg.Validate()

	if cfg.Poll.Timeout != 25 {
		t.Errorf("timeout = %d, want clamped to 25", cfg.Poll.Timeout)
	}
	if cfg.Poll.IdleDelay != 1 || cfg.Poll.Backoff != 3 || cfg.Poll.Offset != 0 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Ops.DispatchTimeout != 10 {
		t.Errorf("dispatch timeout = %d, want 10", cfg.Ops.DispatchTimeout)
	}
}
