package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"k8s.io/klog/v2"
)

// Status of the notification service, as reported by the status probe.
type Status struct {
	Configured   bool     `json:"configured"`
	Providers    []string `json:"providers"`
	FallbackOnly bool     `json:"fallbackOnly"`
}

// Service sends notifications through a chain of providers.
type Service struct {
	adminPhone string
	mesa       string
	providers  []Provider
	fallback   Provider
	throttle   *Throttle
	clock      clockwork.Clock
}

// NewService builds the provider chain from cfg: Twilio, Vonage, TextMagic, the generic
// API and WhatsApp, in that order, keeping only the configured ones.
func NewService(cfg Config, clock clockwork.Clock) *Service {
	all := []Provider{
		NewTwilio(cfg.Twilio),
		NewVonage(cfg.Vonage),
		NewTextMagic(cfg.TextMagic),
		NewGeneric(cfg.Generic),
		NewWhatsApp(cfg.WhatsApp),
	}
	var providers []Provider
	for _, p := range all {
		if p.Configured() {
			providers = append(providers, p)
		}
	}
	return NewServiceWithProviders(cfg, clock, providers...)
}

// NewServiceWithProviders creates a service using exactly the given providers, followed by
// the simulated fallback.
func NewServiceWithProviders(cfg Config, clock clockwork.Clock, providers ...Provider) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Mesa == "" {
		cfg.Mesa = DefaultMesa
	}
	s := &Service{
		adminPhone: cfg.AdminPhone,
		mesa:       cfg.Mesa,
		providers:  providers,
		fallback:   Simulated{},
		throttle:   NewThrottle(clock, cfg.Throttle),
		clock:      clock,
	}
	klog.V(1).Infof("NewService: providers %v", s.Status().Providers)
	return s
}

// Status reports which providers are configured.
func (s *Service) Status() Status {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return Status{
		Configured:   len(names) > 0,
		Providers:    names,
		FallbackOnly: len(names) == 0,
	}
}

// Send delivers message to the given phone, or to the administrator if to is empty, through
// the first provider that accepts it.
func (s *Service) Send(ctx context.Context, to, message string) (Result, error) {
	if to == "" {
		to = s.adminPhone
	}
	for _, p := range s.providers {
		res, err := p.Send(ctx, to, message)
		if err == nil {
			klog.Infof("Service.Send: sent through %s (%s)", res.Provider, res.MessageID)
			return res, nil
		}
		klog.Warningf("Service.Send: %s failed, trying next provider: %v", p.Name(), err)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}
	return s.fallback.Send(ctx, to, message)
}

// PlayerOnline notifies the administrator that player joined. Repeated notifications for
// the same player within the throttle window return ErrThrottled.
func (s *Service) PlayerOnline(ctx context.Context, player string) (Result, error) {
	return s.notifyPlayer(ctx, "online_"+player, FormatPlayerOnline(player, s.mesa, s.now()))
}

// PlayerOffline notifies the administrator that player left.
func (s *Service) PlayerOffline(ctx context.Context, player string) (Result, error) {
	return s.notifyPlayer(ctx, "offline_"+player, FormatPlayerOffline(player, s.mesa, s.now()))
}

func (s *Service) notifyPlayer(ctx context.Context, key, message string) (Result, error) {
	if !s.throttle.Allow(key) {
		klog.V(1).Infof("Service: notification %q throttled", key)
		return Result{}, fmt.Errorf("%w: %s", ErrThrottled, key)
	}
	res, err := s.Send(ctx, "", message)
	if err != nil {
		// Failed notifications do not count against the window.
		s.throttle.Forget(key)
		return Result{}, err
	}
	return res, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}
