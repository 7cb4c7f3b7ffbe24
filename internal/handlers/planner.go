// Package handlers implements the specialized conversational handlers the
// router dispatches to. Each one wraps the plan manager and, where the turn
// is genuinely conversational, defers to the brain adapter.
package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dayflowhq/dayflow/internal/brain"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

var delayPattern = regexp.MustCompile(`(?i)(?:delay|push|postpone)\D*?(\d+)\s*min`)

// PlannerHandler serves schedule requests. Structured intents (delay,
// listing) hit the plan manager directly; everything else goes to the brain
// with the injected system state along for the ride.
type PlannerHandler struct {
	manager   *plan.Manager
	brain     brain.Adapter
	sessionID string
}

func NewPlannerHandler(manager *plan.Manager, adapter brain.Adapter, sessionID string) *PlannerHandler {
	return &PlannerHandler{manager: manager, brain: adapter, sessionID: sessionID}
}

func (h *PlannerHandler) Name() string { return router.TargetPlanner }

func (h *PlannerHandler) Handle(ctx context.Context, input string) (router.Envelope, error) {
	userText := extractUserInput(input)
	lowered := strings.ToLower(userText)

	if m := delayPattern.FindStringSubmatch(userText); m != nil {
		return h.delayRemaining(ctx, m[1])
	}

	if strings.Contains(lowered, "what's left") || strings.Contains(lowered, "list") ||
		strings.Contains(lowered, "show") && strings.Contains(lowered, "plan") {
		listing, err := h.manager.ListTasks("")
		if err != nil {
			return router.Envelope{}, err
		}
		return router.Envelope{Content: listing, Status: router.StatusFinished}, nil
	}

	reply, err := h.brain.Respond(ctx, brain.Request{
		SessionID: h.sessionID,
		Persona:   "planner",
		Input:     input,
	})
	if err != nil {
		return router.Envelope{}, err
	}
	status := router.StatusContinue
	if reply.Done {
		status = router.StatusFinished
	}
	return router.Envelope{Content: reply.Text, Status: status}, nil
}

func (h *PlannerHandler) delayRemaining(ctx context.Context, minutesText string) (router.Envelope, error) {
	minutes := 0
	for _, r := range minutesText {
		minutes = minutes*10 + int(r-'0')
	}

	anchor, err := h.currentAnchor()
	if err != nil {
		return router.Envelope{}, err
	}

	res, err := h.manager.ShiftRemaining(ctx, anchor, minutes, "")
	if err != nil {
		return router.Envelope{}, err
	}
	content := fmt.Sprintf("Delayed by %d minutes and rescheduled %d remaining task(s).", res.DelayMinutes, res.Shifted)
	if !res.Changed {
		content = "Nothing to change."
	}
	return router.Envelope{Content: content, Status: router.StatusFinished}, nil
}

// currentAnchor picks the first unfinished task of today's plan as the
// anchor for a delay request.
func (h *PlannerHandler) currentAnchor() (string, error) {
	tasks, _, err := h.manager.Tasks("")
	if err != nil {
		return "", err
	}
	for _, t := range tasks {
		if !t.Status.Finished() {
			return t.Key(), nil
		}
	}
	return "", fmt.Errorf("no unfinished task to anchor the delay on")
}

// extractUserInput strips the router's context injection so intent matching
// sees only what the user typed.
func extractUserInput(input string) string {
	const openTag, closeTag = "<User_Input>", "</User_Input>"
	start := strings.Index(input, openTag)
	end := strings.Index(input, closeTag)
	if start < 0 || end < 0 || end <= start {
		return strings.TrimSpace(input)
	}
	return strings.TrimSpace(input[start+len(openTag) : end])
}
