package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Oracle classifies free-form input into the routing protocol: one line
// starting "CALL: <TARGET> | <reason>" or "REPLY: <text>".
type Oracle interface {
	Classify(ctx context.Context, input string) (string, error)
}

// Decision is a parsed oracle reply.
type Decision struct {
	IsCall bool
	Target string
	Reason string
	Reply  string
}

// ParseDecision interprets one oracle line. Malformed output degrades to a
// reply carrying the raw text, so a confused oracle produces a weird answer
// instead of a dropped turn.
func ParseDecision(raw string) Decision {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "CALL:") {
		rest := strings.TrimPrefix(text, "CALL:")
		target, reason, _ := strings.Cut(rest, "|")
		return Decision{
			IsCall: true,
			Target: strings.ToUpper(strings.TrimSpace(target)),
			Reason: strings.TrimSpace(reason),
		}
	}
	if strings.HasPrefix(text, "REPLY:") {
		return Decision{Reply: strings.TrimSpace(strings.TrimPrefix(text, "REPLY:"))}
	}
	return Decision{Reply: "REPLY: " + text}
}

// OracleConfig controls oracle construction.
type OracleConfig struct {
	Mode    string
	HTTPURL string
}

// NewOracle builds the classification oracle. Auto mode uses the HTTP
// backend when configured and keeps the keyword oracle as a fallback.
func NewOracle(cfg OracleConfig) (Oracle, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackOracle(NewHTTPOracle(cfg.HTTPURL), NewKeywordOracle()), nil
		}
		return NewKeywordOracle(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("oracle HTTP url is required for http mode")
		}
		return NewHTTPOracle(cfg.HTTPURL), nil
	case "keyword":
		return NewKeywordOracle(), nil
	default:
		return nil, fmt.Errorf("unsupported oracle mode %q", cfg.Mode)
	}
}

// KeywordOracle is a deterministic rule-based classifier. It stands in for
// the language-model oracle in local/dev runs and as a degraded fallback.
type KeywordOracle struct {
	rules []keywordRule
}

type keywordRule struct {
	target   string
	reason   string
	keywords []string
}

func NewKeywordOracle() *KeywordOracle {
	return &KeywordOracle{
		rules: []keywordRule{
			{
				target: TargetPlanner,
				reason: "schedule request",
				keywords: []string{
					"schedule", "plan", "delay", "move", "postpone", "reschedule",
					"tomorrow", "calendar", "what's left", "meeting",
				},
			},
			{
				target: TargetFocus,
				reason: "task execution",
				keywords: []string{
					"start", "begin", "finished", "stuck", "distracted",
					"don't want", "working on", "procrastinat",
				},
			},
			{
				target: TargetParking,
				reason: "thought capture",
				keywords: []string{
					"look up", "search", "remember", "idea", "note",
					"don't forget", "remind me",
				},
			},
		},
	}
}

func (o *KeywordOracle) Classify(_ context.Context, input string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, rule := range o.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(normalized, kw) {
				return fmt.Sprintf("CALL: %s | %s", rule.target, rule.reason), nil
			}
		}
	}
	return "REPLY: Hi! Tell me what you want to do next.", nil
}

// HTTPOracle forwards classification to an external endpoint that speaks
// the CALL/REPLY protocol.
type HTTPOracle struct {
	url    string
	client *http.Client
}

func NewHTTPOracle(url string) *HTTPOracle {
	return &HTTPOracle{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (o *HTTPOracle) Classify(ctx context.Context, input string) (string, error) {
	payload, err := json.Marshal(map[string]string{"input": input})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("oracle http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var obj struct {
		Decision string `json:"decision"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && strings.TrimSpace(obj.Decision) != "" {
		return strings.TrimSpace(obj.Decision), nil
	}
	return strings.TrimSpace(string(body)), nil
}

// FallbackOracle tries the primary and falls back on failure, except when
// the caller's context is already gone.
type FallbackOracle struct {
	primary  Oracle
	fallback Oracle
}

func NewFallbackOracle(primary, fallback Oracle) *FallbackOracle {
	return &FallbackOracle{primary: primary, fallback: fallback}
}

func (o *FallbackOracle) Classify(ctx context.Context, input string) (string, error) {
	raw, err := o.primary.Classify(ctx, input)
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return "", err
	}
	return o.fallback.Classify(ctx, input)
}
