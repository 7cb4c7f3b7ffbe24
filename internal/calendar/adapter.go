// Package calendar propagates plan mutations to an external calendar.
// Sync is strictly best-effort: adapters can fail or be absent and the
// local plan mutation still stands.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable marks an adapter that cannot reach any calendar backend.
// Callers treat it as "sync skipped" rather than a sync failure.
var ErrUnavailable = errors.New("calendar unavailable")

// Adapter is the external calendar contract consumed by the plan manager.
type Adapter interface {
	Create(ctx context.Context, title string, start, end time.Time) (string, error)
	Update(ctx context.Context, eventID, title string, start, end time.Time) (string, error)
	Delete(ctx context.Context, eventID string) error
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	ICSPath string
	HTTPURL string
}

// NewAdapter builds the calendar adapter for the configured mode.
func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPAdapter(cfg.HTTPURL), nil
		}
		if strings.TrimSpace(cfg.ICSPath) != "" {
			return NewICSAdapter(cfg.ICSPath), nil
		}
		return NewNoopAdapter("no calendar backend configured"), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("calendar HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "ics":
		if strings.TrimSpace(cfg.ICSPath) == "" {
			return nil, errors.New("calendar ICS path is required for ics mode")
		}
		return NewICSAdapter(cfg.ICSPath), nil
	case "noop":
		return NewNoopAdapter("calendar disabled"), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported calendar adapter mode %q", cfg.Mode)
	}
}

// NoopAdapter stands in when no calendar backend is reachable. It carries
// the reason so health endpoints can report why sync is off.
type NoopAdapter struct {
	Reason string
}

func NewNoopAdapter(reason string) *NoopAdapter {
	return &NoopAdapter{Reason: reason}
}

func (a *NoopAdapter) Create(context.Context, string, time.Time, time.Time) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnavailable, a.Reason)
}

func (a *NoopAdapter) Update(context.Context, string, string, time.Time, time.Time) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnavailable, a.Reason)
}

func (a *NoopAdapter) Delete(context.Context, string) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, a.Reason)
}
