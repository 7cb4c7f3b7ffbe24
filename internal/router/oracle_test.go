package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseDecision(t *testing.T) {
	d := ParseDecision("CALL: planner | time adjustment")
	if !d.IsCall || d.Target != "PLANNER" || d.Reason != "time adjustment" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	d = ParseDecision("CALL: FOCUS")
	if !d.IsCall || d.Target != "FOCUS" || d.Reason != "" {
		t.Fatalf("reason should be optional: %+v", d)
	}

	d = ParseDecision("REPLY: hello there")
	if d.IsCall || d.Reply != "hello there" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	d = ParseDecision("something the model made up")
	if d.IsCall || d.Reply != "REPLY: something the model made up" {
		t.Fatalf("malformed output must degrade to a reply: %+v", d)
	}
}

func TestKeywordOracle(t *testing.T) {
	o := NewKeywordOracle()
	cases := map[string]string{
		"delay the current task by 30 minutes": "CALL: PLANNER",
		"I am ready to start coding":           "CALL: FOCUS",
		"look up the exchange rate":            "CALL: PARKING",
		"hello":                                "REPLY:",
	}
	for input, wantPrefix := range cases {
		got, err := o.Classify(context.Background(), input)
		if err != nil {
			t.Fatalf("Classify(%q): %v", input, err)
		}
		if !strings.HasPrefix(got, wantPrefix) {
			t.Fatalf("Classify(%q) = %q, want prefix %q", input, got, wantPrefix)
		}
	}
}

func TestHTTPOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"decision":"CALL: FOCUS | task start"}`))
	}))
	defer srv.Close()

	got, err := NewHTTPOracle(srv.URL).Classify(context.Background(), "start")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "CALL: FOCUS | task start" {
		t.Fatalf("unexpected decision: %q", got)
	}
}

func TestHTTPOraclePlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("REPLY: hi"))
	}))
	defer srv.Close()

	got, err := NewHTTPOracle(srv.URL).Classify(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "REPLY: hi" {
		t.Fatalf("unexpected decision: %q", got)
	}
}

func TestFallbackOracle(t *testing.T) {
	primary := failingOracle{err: errors.New("down")}
	got, err := NewFallbackOracle(primary, NewKeywordOracle()).Classify(context.Background(), "delay my plan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !strings.HasPrefix(got, "CALL: PLANNER") {
		t.Fatalf("fallback not consulted: %q", got)
	}

	if _, err := NewFallbackOracle(failingOracle{err: context.Canceled}, NewKeywordOracle()).
		Classify(context.Background(), "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must not fall back, got %v", err)
	}
}

func TestNewOracleModes(t *testing.T) {
	if _, err := NewOracle(OracleConfig{Mode: "http"}); err == nil {
		t.Fatal("http mode without url must fail")
	}
	if _, err := NewOracle(OracleConfig{Mode: "bogus"}); err == nil {
		t.Fatal("unknown mode must fail")
	}
	o, err := NewOracle(OracleConfig{})
	if err != nil {
		t.Fatalf("NewOracle: %v", err)
	}
	if _, ok := o.(*KeywordOracle); !ok {
		t.Fatalf("auto without url should be the keyword oracle, got %T", o)
	}
}

type failingOracle struct{ err error }

func (o failingOracle) Classify(context.Context, string) (string, error) {
	return "", o.err
}
