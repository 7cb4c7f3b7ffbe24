package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dayflowhq/dayflow/internal/parking"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

// RewardHandler closes out the day: completion counts, focused hours, and
// whatever was parked along the way.
type RewardHandler struct {
	manager   *plan.Manager
	parking   *parking.Service
	sessionID string
}

func NewRewardHandler(manager *plan.Manager, parkingSvc *parking.Service, sessionID string) *RewardHandler {
	return &RewardHandler{manager: manager, parking: parkingSvc, sessionID: sessionID}
}

func (h *RewardHandler) Name() string { return router.TargetReward }

func (h *RewardHandler) Handle(ctx context.Context, _ string) (router.Envelope, error) {
	summary, err := h.manager.DaySummaryFor("")
	if errors.Is(err, plan.ErrNotFound) {
		return router.Envelope{Content: "Today's plan is not loaded.", Status: router.StatusFinished}, nil
	}
	if err != nil {
		return router.Envelope{}, err
	}

	content := fmt.Sprintf("Completed %d/%d tasks today, focused %s hours.",
		summary.Done, summary.Total, formatHours(summary.FocusedHours))

	if h.parking != nil {
		if parked, err := h.parking.Summary(ctx, h.sessionID); err == nil && parked != "Nothing parked." {
			content += "\n\n" + parked
		}
	}

	return router.Envelope{Content: content, Status: router.StatusFinished}, nil
}

// formatHours renders hours with one decimal, dropping a trailing ".0".
func formatHours(hours float64) string {
	text := fmt.Sprintf("%.1f", hours)
	text = strings.TrimSuffix(text, ".0")
	if text == "" || text == "-0" {
		return "0"
	}
	return text
}
