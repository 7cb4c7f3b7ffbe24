package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dayflowhq/dayflow/internal/brain"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

var completionPattern = regexp.MustCompile(`(?i)(?:finished|done with|completed)\s+(.+)`)

// FocusHandler coaches the user through the current task. It keeps the
// session lock (CONTINUE) while coaching and releases it once the plan has
// no unfinished tasks left.
type FocusHandler struct {
	manager   *plan.Manager
	brain     brain.Adapter
	sessionID string
}

func NewFocusHandler(manager *plan.Manager, adapter brain.Adapter, sessionID string) *FocusHandler {
	return &FocusHandler{manager: manager, brain: adapter, sessionID: sessionID}
}

func (h *FocusHandler) Name() string { return router.TargetFocus }

func (h *FocusHandler) Handle(ctx context.Context, input string) (router.Envelope, error) {
	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)

	if m := completionPattern.FindStringSubmatch(trimmed); m != nil {
		return h.completeTask(strings.TrimSpace(m[1]))
	}

	if strings.Contains(lowered, "stuck") || strings.Contains(lowered, "don't want") ||
		strings.Contains(lowered, "distracted") {
		title := "current task"
		if next, ok := h.nextPending(); ok {
			title = next.Title
		}
		return router.Envelope{Content: microSteps(title), Status: router.StatusContinue}, nil
	}

	// Conversational coaching: stay locked while the exchange goes on.
	reply, err := h.brain.Respond(ctx, brain.Request{
		SessionID: h.sessionID,
		Persona:   "focus",
		Input:     trimmed,
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

func (h *FocusHandler) completeTask(ref string) (router.Envelope, error) {
	task, err := h.manager.CompleteTask(ref)
	if errors.Is(err, plan.ErrNotFound) {
		return router.Envelope{
			Content: fmt.Sprintf("I could not find a task matching %q.", ref),
			Status:  router.StatusContinue,
		}, nil
	}
	if err != nil {
		return router.Envelope{}, err
	}

	content := fmt.Sprintf("Completed: %s (%s - %s)", task.Title, orDash(task.Start), orDash(task.End))
	if next, ok := h.nextPending(); ok {
		return router.Envelope{
			Content: content + "\nNext up: " + next.Title,
			Status:  router.StatusContinue,
		}, nil
	}
	return router.Envelope{
		Content: content + "\nThat was the last one. Say \"finish day\" for your summary.",
		Status:  router.StatusFinished,
	}, nil
}

func (h *FocusHandler) nextPending() (plan.Task, bool) {
	tasks, _, err := h.manager.Tasks("")
	if err != nil {
		return plan.Task{}, false
	}
	for _, t := range tasks {
		if !t.Status.Finished() {
			return t, true
		}
	}
	return plan.Task{}, false
}

// microSteps offers three five-minute openers for a stalled task.
func microSteps(title string) string {
	steps := []string{
		fmt.Sprintf("Define the smallest done state for %q in one sentence.", title),
		"Open the relevant file or doc and mark the exact entry point.",
		"Create the first empty skeleton so something runs or saves.",
	}
	return strings.Join(steps, " / ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
