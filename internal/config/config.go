// Package config loads the client configuration: defaults, then an optional YAML file,
// then the environment (including a .env file in the working directory).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mjappgame/mesa/internal/notify"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Config of the game client.
type Config struct {
	ServerURL      string        `yaml:"server_url"`
	UserID         string        `yaml:"user_id"`
	Username       string        `yaml:"username"`
	DBPath         string        `yaml:"db_path"`
	TurnSeconds    int           `yaml:"turn_seconds"`
	Magnitude      int           `yaml:"magnitude"`
	NoticeWindow   time.Duration `yaml:"notice_window"`
	DiagnosticEcho bool          `yaml:"diagnostic_echo"`

	Reconnect Reconnect     `yaml:"reconnect"`
	Notify    notify.Config `yaml:"notify"`
}

// Reconnect policy of the connection to the game server.
type Reconnect struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	DelayMax time.Duration `yaml:"delay_max"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		ServerURL:      "ws://localhost:5000/ws",
		DBPath:         "./data/mesa.db",
		TurnSeconds:    4,
		Magnitude:      30000,
		NoticeWindow:   2 * time.Second,
		DiagnosticEcho: true,
		Reconnect: Reconnect{
			Attempts: 10,
			Delay:    time.Second,
			DelayMax: 5 * time.Second,
			Timeout:  20 * time.Second,
		},
		Notify: notify.Config{
			Throttle:   notify.DefaultThrottle,
			ListenAddr: notify.DefaultListenAddr,
			Mesa:       notify.DefaultMesa,
		},
	}
}

// Load builds the configuration. path may be empty, in which case no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		klog.Warningf("config.Load: could not load .env file: %v", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerURL = getEnv("MESA_SERVER_URL", c.ServerURL)
	c.UserID = getEnv("MESA_USER_ID", c.UserID)
	c.Username = getEnv("MESA_USERNAME", c.Username)
	c.DBPath = getEnv("MESA_DB_PATH", c.DBPath)
	c.TurnSeconds = getEnvAsInt("MESA_TURN_SECONDS", c.TurnSeconds)
	c.Notify.AdminPhone = getEnv("MESA_ADMIN_PHONE", c.Notify.AdminPhone)

	n := &c.Notify
	n.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", n.Twilio.AccountSID)
	n.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", n.Twilio.AuthToken)
	n.Twilio.FromNumber = getEnv("TWILIO_FROM_NUMBER", n.Twilio.FromNumber)
	n.Vonage.APIKey = getEnv("VONAGE_API_KEY", n.Vonage.APIKey)
	n.Vonage.APISecret = getEnv("VONAGE_API_SECRET", n.Vonage.APISecret)
	n.TextMagic.Username = getEnv("TEXTMAGIC_USERNAME", n.TextMagic.Username)
	n.TextMagic.APIKey = getEnv("TEXTMAGIC_API_KEY", n.TextMagic.APIKey)
	n.Generic.APIURL = getEnv("SMS_API_URL", n.Generic.APIURL)
	n.Generic.APIKey = getEnv("SMS_API_KEY", n.Generic.APIKey)
	n.Generic.APISecret = getEnv("SMS_API_SECRET", n.Generic.APISecret)
	n.WhatsApp.APIURL = getEnv("WHATSAPP_API_URL", n.WhatsApp.APIURL)
	n.WhatsApp.APIToken = getEnv("WHATSAPP_API_TOKEN", n.WhatsApp.APIToken)
}

// Validate checks the values the game cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.ServerURL == "":
		return errors.New("config: server_url is required")
	case c.TurnSeconds <= 0:
		return fmt.Errorf("config: turn_seconds must be positive, got %d", c.TurnSeconds)
	case c.Magnitude <= 0:
		return fmt.Errorf("config: magnitude must be positive, got %d", c.Magnitude)
	case c.Reconnect.Attempts <= 0:
		return fmt.Errorf("config: reconnect.attempts must be positive, got %d", c.Reconnect.Attempts)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		klog.Warningf("config: ignoring %s=%q, not an integer", key, value)
	}
	return defaultValue
}
