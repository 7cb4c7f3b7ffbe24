package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no backend is
// configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Respond(ctx context.Context, req Request) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	default:
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return Reply{Text: "I am listening.", Done: true}, nil
	}
	if len(req.Context) > 0 {
		last := strings.TrimSpace(req.Context[len(req.Context)-1])
		if last != "" {
			return Reply{Text: fmt.Sprintf("Noted: %s\nWith context: %s", input, last), Done: true}, nil
		}
	}
	return Reply{Text: "Noted: " + input, Done: true}, nil
}
