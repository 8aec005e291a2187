package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

const (
	providerTimeout = 10 * time.Second
	senderName      = "MJAPPGAME"

	twilioAPIURL    = "https://api.twilio.com/2010-04-01/Accounts"
	vonageAPIURL    = "https://rest.nexmo.com/sms/json"
	textMagicAPIURL = "https://rest.textmagic.com/api/v2/messages"
)

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// Twilio sends SMS through the Twilio Messages API.
type Twilio struct {
	cfg  TwilioConfig
	http *httpClient
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.APIURL == "" {
		cfg.APIURL = twilioAPIURL
	}
	c := newHTTPClient(providerTimeout)
	c.SetHeader("Authorization", basicAuth(cfg.AccountSID, cfg.AuthToken))
	return &Twilio{cfg: cfg, http: c}
}

func (p *Twilio) Name() string { return "twilio" }

func (p *Twilio) Configured() bool {
	return p.cfg.AccountSID != "" && p.cfg.AuthToken != "" && p.cfg.FromNumber != ""
}

func (p *Twilio) Send(ctx context.Context, to, message string) (Result, error) {
	if !p.Configured() {
		return Result{}, fmt.Errorf("twilio: %w", ErrNotConfigured)
	}
	form := url.Values{"To": {to}, "From": {p.cfg.FromNumber}, "Body": {message}}
	endpoint := fmt.Sprintf("%s/%s/Messages.json", strings.TrimSuffix(p.cfg.APIURL, "/"), p.cfg.AccountSID)
	var resp struct {
		SID string `json:"sid"`
	}
	if err := p.http.Post(ctx, endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()), &resp); err != nil {
		return Result{}, fmt.Errorf("twilio: %w", err)
	}
	return Result{Provider: p.Name(), MessageID: resp.SID}, nil
}

// Vonage sends SMS through the Vonage (Nexmo) SMS API.
type Vonage struct {
	cfg  VonageConfig
	http *httpClient
}

func NewVonage(cfg VonageConfig) *Vonage {
	if cfg.APIURL == "" {
		cfg.APIURL = vonageAPIURL
	}
	return &Vonage{cfg: cfg, http: newHTTPClient(providerTimeout)}
}

func (p *Vonage) Name() string { return "vonage" }

func (p *Vonage) Configured() bool {
	return p.cfg.APIKey != "" && p.cfg.APISecret != ""
}

func (p *Vonage) Send(ctx context.Context, to, message string) (Result, error) {
	if !p.Configured() {
		return Result{}, fmt.Errorf("vonage: %w", ErrNotConfigured)
	}
	body := map[string]string{
		"from":       senderName,
		"to":         strings.TrimPrefix(to, "+"),
		"text":       message,
		"api_key":    p.cfg.APIKey,
		"api_secret": p.cfg.APISecret,
	}
	var resp struct {
		Messages []struct {
			Status    string `json:"status"`
			MessageID string `json:"message-id"`
			ErrorText string `json:"error-text"`
		} `json:"messages"`
	}
	if err := p.http.PostJSON(ctx, p.cfg.APIURL, body, &resp); err != nil {
		return Result{}, fmt.Errorf("vonage: %w", err)
	}
	if len(resp.Messages) == 0 {
		return Result{}, fmt.Errorf("vonage: empty response")
	}
	if m := resp.Messages[0]; m.Status != "0" {
		return Result{}, fmt.Errorf("vonage: status %s: %s", m.Status, m.ErrorText)
	}
	return Result{Provider: p.Name(), MessageID: resp.Messages[0].MessageID}, nil
}

// TextMagic sends SMS through the TextMagic REST API.
type TextMagic struct {
	cfg  TextMagicConfig
	http *httpClient
}

func NewTextMagic(cfg TextMagicConfig) *TextMagic {
	if cfg.APIURL == "" {
		cfg.APIURL = textMagicAPIURL
	}
	c := newHTTPClient(providerTimeout)
	c.SetHeader("Authorization", basicAuth(cfg.Username, cfg.APIKey))
	return &TextMagic{cfg: cfg, http: c}
}

func (p *TextMagic) Name() string { return "textmagic" }

func (p *TextMagic) Configured() bool {
	return p.cfg.Username != "" && p.cfg.APIKey != ""
}

func (p *TextMagic) Send(ctx context.Context, to, message string) (Result, error) {
	if !p.Configured() {
		return Result{}, fmt.Errorf("textmagic: %w", ErrNotConfigured)
	}
	var resp struct {
		ID any `json:"id"`
	}
	body := map[string]string{"text": message, "phones": to}
	if err := p.http.PostJSON(ctx, p.cfg.APIURL, body, &resp); err != nil {
		return Result{}, fmt.Errorf("textmagic: %w", err)
	}
	return Result{Provider: p.Name(), MessageID: idString(resp.ID)}, nil
}

// Generic sends SMS through any JSON API taking {to, message, from} with a bearer token.
type Generic struct {
	cfg  GenericConfig
	http *httpClient
}

func NewGeneric(cfg GenericConfig) *Generic {
	c := newHTTPClient(providerTimeout)
	c.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	c.SetHeader("X-API-Secret", cfg.APISecret)
	return &Generic{cfg: cfg, http: c}
}

func (p *Generic) Name() string { return "generic" }

func (p *Generic) Configured() bool {
	return p.cfg.APIURL != "" && p.cfg.APIKey != ""
}

func (p *Generic) Send(ctx context.Context, to, message string) (Result, error) {
	if !p.Configured() {
		return Result{}, fmt.Errorf("generic: %w", ErrNotConfigured)
	}
	var resp map[string]any
	body := map[string]string{"to": to, "message": message, "from": senderName}
	if err := p.http.PostJSON(ctx, p.cfg.APIURL, body, &resp); err != nil {
		return Result{}, fmt.Errorf("generic: %w", err)
	}
	id := idString(resp["messageId"])
	if id == "" {
		id = idString(resp["id"])
	}
	return Result{Provider: p.Name(), MessageID: id}, nil
}

// WhatsApp sends text messages through a WhatsApp Business API gateway.
type WhatsApp struct {
	cfg  WhatsAppConfig
	http *httpClient
}

func NewWhatsApp(cfg WhatsAppConfig) *WhatsApp {
	c := newHTTPClient(providerTimeout)
	c.SetHeader("Authorization", "Bearer "+cfg.APIToken)
	return &WhatsApp{cfg: cfg, http: c}
}

func (p *WhatsApp) Name() string { return "whatsapp" }

func (p *WhatsApp) Configured() bool {
	return p.cfg.APIURL != "" && p.cfg.APIToken != ""
}

func (p *WhatsApp) Send(ctx context.Context, to, message string) (Result, error) {
	if !p.Configured() {
		return Result{}, fmt.Errorf("whatsapp: %w", ErrNotConfigured)
	}
	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	body := map[string]string{"to": strings.TrimPrefix(to, "+"), "text": message, "type": "text"}
	if err := p.http.PostJSON(ctx, p.cfg.APIURL, body, &resp); err != nil {
		return Result{}, fmt.Errorf("whatsapp: %w", err)
	}
	var id string
	if len(resp.Messages) > 0 {
		id = resp.Messages[0].ID
	}
	return Result{Provider: p.Name(), MessageID: id}, nil
}

// Simulated only logs the message. It is the last resort of the chain.
type Simulated struct{}

func (Simulated) Name() string     { return "simulated" }
func (Simulated) Configured() bool { return true }

func (p Simulated) Send(ctx context.Context, to, message string) (Result, error) {
	id := uuid.NewString()
	klog.Infof("Simulated.Send: message %s to %s:\n%s", id, to, message)
	return Result{Provider: p.Name(), MessageID: id}, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
