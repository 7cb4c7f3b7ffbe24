package brain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAdapterAutoFallsBackToMock(t *testing.T) {
	a, err := NewAdapter(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	reply, err := a.Respond(context.Background(), Request{Input: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(reply.Text, "hello") {
		t.Fatalf("unexpected reply text: %q", reply.Text)
	}
}

func TestNewAdapterHTTPRequiresURL(t *testing.T) {
	if _, err := NewAdapter(Config{Mode: "http"}); err == nil {
		t.Fatal("expected error for http mode without url")
	}
	if _, err := NewAdapter(Config{Mode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestHTTPAdapterJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"from backend","done":true}`))
	}))
	defer srv.Close()

	reply, err := NewHTTPAdapter(srv.URL).Respond(context.Background(), Request{Input: "x"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Text != "from backend" || !reply.Done {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestHTTPAdapterPlainTextReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain words"))
	}))
	defer srv.Close()

	reply, err := NewHTTPAdapter(srv.URL).Respond(context.Background(), Request{Input: "x"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Text != "plain words" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestFallbackAdapterUsesFallback(t *testing.T) {
	a := NewFallbackAdapter(errAdapter{}, okAdapter{text: "fallback"})
	reply, err := a.Respond(context.Background(), Request{Input: "x"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Text != "fallback" {
		t.Fatalf("reply.Text = %q, want fallback", reply.Text)
	}
}

func TestFallbackAdapterSkipsFallbackOnCanceledContext(t *testing.T) {
	fb := &countingAdapter{text: "fallback"}
	a := NewFallbackAdapter(cancelAdapter{}, fb)
	_, err := a.Respond(context.Background(), Request{Input: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if fb.calls != 0 {
		t.Fatalf("fallback should not be called, calls = %d", fb.calls)
	}
}

type errAdapter struct{}

func (errAdapter) Respond(context.Context, Request) (Reply, error) {
	return Reply{}, errors.New("boom")
}

type okAdapter struct {
	text string
}

func (a okAdapter) Respond(context.Context, Request) (Reply, error) {
	return Reply{Text: a.text, Done: true}, nil
}

type cancelAdapter struct{}

func (cancelAdapter) Respond(context.Context, Request) (Reply, error) {
	return Reply{}, context.Canceled
}

type countingAdapter struct {
	text  string
	calls int
}

func (a *countingAdapter) Respond(context.Context, Request) (Reply, error) {
	a.calls++
	return Reply{Text: a.text, Done: true}, nil
}
