// Package notify sends best-effort notifications to the administrator, by SMS or WhatsApp,
// when players connect or disconnect.
//
// Providers are tried in order and the first one that accepts the message wins. When no
// provider is configured, or all of them fail, the message is only logged by the simulated
// fallback provider. Nothing here ever affects a game session.
package notify

import (
	"context"
	"errors"
	"time"
)

// Result of a sent notification.
type Result struct {
	Provider  string `json:"provider"`
	MessageID string `json:"messageId"`
}

// Provider delivers a text message to a phone number.
type Provider interface {
	// Name identifies the provider in results and logs.
	Name() string

	// Configured reports whether the provider has the credentials it needs.
	Configured() bool

	Send(ctx context.Context, to, message string) (Result, error)
}

var (
	// ErrNotConfigured is returned by a provider missing its credentials.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrThrottled is returned when the same notification was sent too recently.
	ErrThrottled = errors.New("notification throttled")
)

// Config of the notification service and its providers.
type Config struct {
	AdminPhone string        `yaml:"admin_phone"`
	Throttle   time.Duration `yaml:"throttle"`
	ListenAddr string        `yaml:"listen_addr"`
	Mesa       string        `yaml:"mesa"`

	Twilio    TwilioConfig    `yaml:"twilio"`
	Vonage    VonageConfig    `yaml:"vonage"`
	TextMagic TextMagicConfig `yaml:"textmagic"`
	Generic   GenericConfig   `yaml:"generic"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
}

const (
	DefaultThrottle   = 30 * time.Second
	DefaultListenAddr = ":3000"
	DefaultMesa       = "GOLD"
)

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	APIURL     string `yaml:"api_url"`
}

type VonageConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	APIURL    string `yaml:"api_url"`
}

type TextMagicConfig struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
	APIURL   string `yaml:"api_url"`
}

type GenericConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

type WhatsAppConfig struct {
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
}
