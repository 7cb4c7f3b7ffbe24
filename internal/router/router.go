// Package router dispatches conversational turns to specialized handlers
// and owns the session lock: once a handler asks to continue, subsequent
// turns bypass classification and go straight to it until it finishes, an
// escape word is seen, or the day is closed out.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dayflowhq/dayflow/internal/observability"
)

// Status values carried by every handler envelope.
type Status string

const (
	StatusContinue Status = "CONTINUE"
	StatusFinished Status = "FINISHED"
)

// Envelope is the sole contract between the router and every handler.
type Envelope struct {
	Content string `json:"content"`
	Status  Status `json:"status"`
}

// Handler consumes one conversational turn.
type Handler interface {
	Name() string
	Handle(ctx context.Context, input string) (Envelope, error)
}

// Routing targets the oracle may name.
const (
	TargetPlanner = "PLANNER"
	TargetFocus   = "FOCUS"
	TargetParking = "PARKING"
	TargetReward  = "REWARD"
)

const routerName = "router"

// Escape words force-release the session lock; checked by substring on
// lowercased input so "please stop" works.
var escapeWords = []string{"exit", "stop", "unlock", "end", "quit", "terminate"}

var endOfDayPhrases = []string{"finish day", "end of day", "today done"}

const lockReleasedMessage = "Session lock released."

// Config assembles a Router. Handlers are keyed by target name; Capture is
// the fire-and-forget thought sink invoked for the parking target without
// ever acquiring the lock. PlanContext, when set, is injected into the
// planner's payload so it sees the live schedule.
type Config struct {
	Oracle      Oracle
	Handlers    map[string]Handler
	Capture     func(input string) string
	EndOfDay    Handler
	PlanContext func() string
	Metrics     *observability.Metrics
}

// Router is the per-session routing state machine. One Router serves one
// conversation; its lock must never be shared across sessions.
type Router struct {
	oracle      Oracle
	handlers    map[string]Handler
	capture     func(input string) string
	endOfDay    Handler
	planContext func() string
	metrics     *observability.Metrics

	mu          sync.Mutex
	locked      Handler
	lastHandler string
}

func New(cfg Config) *Router {
	handlers := make(map[string]Handler, len(cfg.Handlers))
	for name, h := range cfg.Handlers {
		handlers[strings.ToUpper(strings.TrimSpace(name))] = h
	}
	return &Router{
		oracle:      cfg.Oracle,
		handlers:    handlers,
		capture:     cfg.Capture,
		endOfDay:    cfg.EndOfDay,
		planContext: cfg.PlanContext,
		metrics:     cfg.Metrics,
		lastHandler: routerName,
	}
}

// Route processes one turn. It never returns an error: handler failures
// and oracle failures are folded into a FINISHED envelope so the caller
// always has something to show.
func (r *Router) Route(ctx context.Context, input string) Envelope {
	normalized := strings.ToLower(strings.TrimSpace(input))

	r.mu.Lock()
	defer r.mu.Unlock()

	// Closing out the day beats everything, including an active lock.
	if matchesAny(normalized, endOfDayPhrases) && r.endOfDay != nil {
		env := r.safeHandle(ctx, r.endOfDay, input)
		r.setLock(nil)
		r.finishTurn(r.endOfDay.Name())
		env.Status = StatusFinished
		return env
	}

	if r.locked != nil && matchesAny(normalized, escapeWords) {
		r.setLock(nil)
		r.finishTurn(routerName)
		return Envelope{Content: lockReleasedMessage, Status: StatusFinished}
	}

	if r.locked != nil {
		env := r.safeHandle(ctx, r.locked, input)
		name := r.locked.Name()
		r.applyLock(r.locked, env)
		r.finishTurn(name)
		return env
	}

	raw, err := r.oracle.Classify(ctx, input)
	if err != nil {
		r.finishTurn(routerName)
		return Envelope{
			Content: "I could not work out what to do with that: " + err.Error(),
			Status:  StatusFinished,
		}
	}

	decision := ParseDecision(raw)
	if !decision.IsCall {
		r.setLock(nil)
		r.finishTurn(routerName)
		return Envelope{Content: decision.Reply, Status: StatusFinished}
	}

	if decision.Target == TargetParking && r.capture != nil {
		// Fire-and-forget: the ack comes back immediately and the lock is
		// never acquired, so a parked thought cannot hijack the session.
		ack := r.capture(input)
		r.setLock(nil)
		r.finishTurn(strings.ToLower(TargetParking))
		return Envelope{Content: ack, Status: StatusFinished}
	}

	handler, ok := r.handlers[decision.Target]
	if !ok {
		r.setLock(nil)
		r.finishTurn(routerName)
		return Envelope{
			Content: fmt.Sprintf("Handling for %s is not implemented yet.", decision.Target),
			Status:  StatusFinished,
		}
	}

	env := r.safeHandle(ctx, handler, input)
	r.applyLock(handler, env)
	r.finishTurn(handler.Name())
	return env
}

// Locked reports the currently locked handler name, or "" when unlocked.
func (r *Router) Locked() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked == nil {
		return ""
	}
	return r.locked.Name()
}

// LastHandler reports which handler served the most recent turn.
func (r *Router) LastHandler() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHandler
}

// safeHandle invokes a handler and guarantees an envelope comes back: an
// error or panic becomes a FINISHED envelope carrying the failure text.
func (r *Router) safeHandle(ctx context.Context, h Handler, input string) (env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			env = Envelope{
				Content: fmt.Sprintf("[%s Error] %v", h.Name(), rec),
				Status:  StatusFinished,
			}
		}
	}()

	payload := input
	if strings.EqualFold(h.Name(), TargetPlanner) && r.planContext != nil {
		payload = injectPlanContext(input, r.planContext())
	}

	env, err := h.Handle(ctx, payload)
	if err != nil {
		return Envelope{
			Content: fmt.Sprintf("[%s Error] %v", h.Name(), err),
			Status:  StatusFinished,
		}
	}
	if env.Status != StatusContinue {
		env.Status = StatusFinished
	}
	return env
}

func injectPlanContext(input, planContext string) string {
	return fmt.Sprintf(
		"<User_Input>\n%s\n</User_Input>\n\n<System_State>\n%s\n</System_State>",
		strings.TrimSpace(input), planContext,
	)
}

func (r *Router) applyLock(h Handler, env Envelope) {
	if env.Status == StatusContinue {
		r.setLock(h)
	} else {
		r.setLock(nil)
	}
}

func (r *Router) setLock(h Handler) {
	if r.metrics != nil {
		switch {
		case h != nil && r.locked == nil:
			r.metrics.ActiveLocks.Inc()
		case h == nil && r.locked != nil:
			r.metrics.ActiveLocks.Dec()
		}
	}
	r.locked = h
}

func (r *Router) finishTurn(handlerName string) {
	r.lastHandler = strings.ToLower(handlerName)
	if r.metrics != nil {
		r.metrics.RoutedTurns.WithLabelValues(strings.ToLower(handlerName)).Inc()
	}
}

func matchesAny(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
