package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter forwards requests to a brain-compatible HTTP endpoint.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (a *HTTPAdapter) Respond(ctx context.Context, req Request) (Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Reply{}, fmt.Errorf("brain http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		// Plain-text backends are acceptable; treat the body as the reply.
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Reply{}, fmt.Errorf("empty brain response")
		}
		return Reply{Text: text, Done: true}, nil
	}
	return reply, nil
}
