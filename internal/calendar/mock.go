package calendar

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Call records one adapter invocation for inspection in tests.
type Call struct {
	Action  string
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
}

// MockAdapter keeps events in memory and records every call.
type MockAdapter struct {
	mu     sync.Mutex
	events map[string]icsEvent
	calls  []Call

	// FailUpdates makes Update return an error; used to exercise the
	// update-then-create fallback.
	FailUpdates bool
	// FailAll makes every call fail.
	FailAll bool
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{events: make(map[string]icsEvent)}
}

func (a *MockAdapter) Create(_ context.Context, title string, start, end time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Action: "create", Title: title, Start: start, End: end})
	if a.FailAll {
		return "", errors.New("mock calendar failure")
	}
	id := uuid.NewString()
	a.events[id] = icsEvent{Title: title, Start: start, End: end}
	return id, nil
}

func (a *MockAdapter) Update(_ context.Context, eventID, title string, start, end time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Action: "update", EventID: eventID, Title: title, Start: start, End: end})
	if a.FailAll || a.FailUpdates {
		return "", errors.New("mock calendar update failure")
	}
	if _, ok := a.events[eventID]; !ok {
		return "", errors.New("mock calendar: unknown event id")
	}
	a.events[eventID] = icsEvent{Title: title, Start: start, End: end}
	return eventID, nil
}

func (a *MockAdapter) Delete(_ context.Context, eventID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Action: "delete", EventID: eventID})
	if a.FailAll {
		return errors.New("mock calendar failure")
	}
	delete(a.events, eventID)
	return nil
}

// Calls returns a copy of the recorded invocations.
func (a *MockAdapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// EventCount reports how many events the mock currently holds.
func (a *MockAdapter) EventCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}
