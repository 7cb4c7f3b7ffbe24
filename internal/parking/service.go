package parking

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dayflowhq/dayflow/internal/observability"
)

const (
	previewLen  = 30
	saveTimeout = 5 * time.Second
)

// Service wraps the store with the capture protocol: the caller gets an
// immediate acknowledgement while the write happens in the background, so a
// slow or broken store never stalls the conversation.
type Service struct {
	store   Store
	metrics *observability.Metrics
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Capture parks a thought and returns the acknowledgement immediately.
// The entry is persisted asynchronously; a failed write is logged and the
// thought is lost, which is an accepted trade for never blocking the user.
func (s *Service) Capture(sessionID, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "Nothing to log."
	}

	entry := Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.store.Save(ctx, entry); err != nil {
			log.Printf("parking: save failed: %v", err)
			return
		}
		if s.metrics != nil {
			s.metrics.ParkingCaptures.Inc()
		}
	}()

	return fmt.Sprintf("Logged: %q", preview(content))
}

// Summary lists the session's parked thoughts, oldest first.
func (s *Service) Summary(ctx context.Context, sessionID string) (string, error) {
	entries, err := s.store.Recent(ctx, sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("load parked entries: %w", err)
	}
	if len(entries) == 0 {
		return "Nothing parked.", nil
	}

	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Parked thoughts (%d):", len(entries)))
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, entry.Content))
	}
	return strings.Join(lines, "\n"), nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen]) + "…"
}
