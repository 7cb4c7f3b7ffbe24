package calendar

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

// HTTPAdapter talks to a generic calendar bridge exposing a JSON
// create/update/delete contract. Anything provider-specific lives behind
// the bridge.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimRight(strings.TrimSpace(url), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type eventPayload struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type eventResponse struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
}

func (r eventResponse) id() string {
	if r.ID != "" {
		return r.ID
	}
	return r.EventID
}

func (a *HTTPAdapter) Create(ctx context.Context, title string, start, end time.Time) (string, error) {
	resp, err := a.send(ctx, http.MethodPost, a.url+"/events", eventPayload{
		Title: title,
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	return resp.id(), nil
}

func (a *HTTPAdapter) Update(ctx context.Context, eventID, title string, start, end time.Time) (string, error) {
	resp, err := a.send(ctx, http.MethodPut, a.url+"/events/"+eventID, eventPayload{
		Title: title,
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if id := resp.id(); id != "" {
		return id, nil
	}
	return eventID, nil
}

func (a *HTTPAdapter) Delete(ctx context.Context, eventID string) error {
	_, err := a.send(ctx, http.MethodDelete, a.url+"/events/"+eventID, nil)
	return err
}

func (a *HTTPAdapter) send(ctx context.Context, method, url string, payload any) (eventResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return eventResponse{}, fmt.Errorf("marshal event: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return eventResponse{}, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := a.client.Do(req)
	if err != nil {
		return eventResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return eventResponse{}, fmt.Errorf("calendar bridge status %d: %s", res.StatusCode, string(detail))
	}

	var resp eventResponse
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return eventResponse{}, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return eventResponse{}, nil
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return eventResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
