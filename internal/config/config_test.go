package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // No .env around.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "ws://localhost:5000/ws" || cfg.TurnSeconds != 4 || cfg.Magnitude != 30000 {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.Reconnect != (Reconnect{Attempts: 10, Delay: time.Second, DelayMax: 5 * time.Second, Timeout: 20 * time.Second}) {
		t.Errorf("reconnect defaults: %+v", cfg.Reconnect)
	}
	if cfg.Notify.Throttle != 30*time.Second || cfg.Notify.ListenAddr != ":3000" {
		t.Errorf("notify defaults: %+v", cfg.Notify)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "mesa.yaml")
	yamlConfig := `
server_url: ws://game.example.com/ws
user_id: ana
turn_seconds: 6
notice_window: 3s
diagnostic_echo: false
reconnect:
  attempts: 3
  delay: 500ms
notify:
  admin_phone: "+573001112233"
  twilio:
    account_sid: AC1
`
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TWILIO_AUTH_TOKEN=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets variables on the process; undo it.
	t.Cleanup(func() { os.Unsetenv("TWILIO_AUTH_TOKEN") })
	t.Setenv("MESA_USER_ID", "bob")
	t.Setenv("VONAGE_API_KEY", "vk")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "ws://game.example.com/ws" || cfg.TurnSeconds != 6 || cfg.NoticeWindow != 3*time.Second || cfg.DiagnosticEcho {
		t.Errorf("file values: %+v", cfg)
	}
	if cfg.UserID != "bob" {
		t.Errorf("environment should override the file: user_id=%q", cfg.UserID)
	}
	if cfg.Reconnect.Attempts != 3 || cfg.Reconnect.Delay != 500*time.Millisecond || cfg.Reconnect.DelayMax != 5*time.Second {
		t.Errorf("reconnect: %+v", cfg.Reconnect)
	}
	n := cfg.Notify
	if n.AdminPhone != "+573001112233" || n.Twilio.AccountSID != "AC1" || n.Twilio.AuthToken != "from-dotenv" || n.Vonage.APIKey != "vk" {
		t.Errorf("notify: %+v", n)
	}
	if n.Mesa != "GOLD" {
		t.Errorf("mesa default lost: %q", n.Mesa)
	}
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"turn seconds": func(c *Config) { c.TurnSeconds = 0 },
		"magnitude":    func(c *Config) { c.Magnitude = -1 },
		"attempts":     func(c *Config) { c.Reconnect.Attempts = 0 },
		"server url":   func(c *Config) { c.ServerURL = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
