package core

// scheduler.go runs the session janitor.
//
// Sessions live only in memory, so abandoned ones (operator closed the tab,
// never submitted) are expired after the configured TTL. The janitor is
// long-running and stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig holds configuration for the session janitor.
type JanitorConfig struct {
	TTL           time.Duration // Idle time before a session is expired (default: DefaultSessionTTL)
	CheckInterval time.Duration // How often to sweep (default: TTL/4, at least a minute)
}

func (c JanitorConfig) withDefaults(fallbackTTL time.Duration) JanitorConfig {
	if c.TTL <= 0 {
		c.TTL = fallbackTTL
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = max(c.TTL/4, time.Minute)
	}
	return c
}

// StartSessionJanitor sweeps expired sessions every CheckInterval until ctx
// is cancelled.
func (s *Service) StartSessionJanitor(ctx context.Context, cfg JanitorConfig) {
	cfg = cfg.withDefaults(s.opts.SessionTTL)
	slog.Info("session janitor started",
		"ttl", cfg.TTL.String(),
		"interval", cfg.CheckInterval.String(),
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case now := <-ticker.C:
			s.sweep(now, cfg.TTL)
		}
	}
}

func (s *Service) sweep(now time.Time, ttl time.Duration) {
	if n := s.ExpireIdle(now.Add(-ttl)); n > 0 {
		slog.Info("expired idle import sessions", "count", n, "remaining", s.SessionCount())
	}
}
