// Package brain bridges the conversational handlers to a language-model
// backend. Handlers stay transport-agnostic: they send a Request and get a
// Reply, whatever serves it.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is the normalized prompt sent to the backend.
type Request struct {
	SessionID string   `json:"session_id"`
	TurnID    string   `json:"turn_id"`
	Persona   string   `json:"persona,omitempty"`
	Input     string   `json:"input"`
	Context   []string `json:"context,omitempty"`
}

// Reply is the backend's answer. Done reports that the backend considers
// the exchange finished; handlers translate that into their envelope status.
type Reply struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Adapter produces a reply for one conversational turn.
type Adapter interface {
	Respond(ctx context.Context, req Request) (Reply, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	HTTPURL string
}

// NewAdapter builds the brain adapter for the configured mode. Auto mode
// prefers the HTTP backend and keeps the mock as a fallback so a dead
// backend degrades the conversation instead of killing it.
func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackAdapter(NewHTTPAdapter(cfg.HTTPURL), NewMockAdapter()), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}

// FallbackAdapter tries the primary and falls back on failure, except when
// the caller's context is already gone.
type FallbackAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFallbackAdapter(primary, fallback Adapter) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, fallback: fallback}
}

func (a *FallbackAdapter) Respond(ctx context.Context, req Request) (Reply, error) {
	reply, err := a.primary.Respond(ctx, req)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return Reply{}, err
	}
	return a.fallback.Respond(ctx, req)
}
