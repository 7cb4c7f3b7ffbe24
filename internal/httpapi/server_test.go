package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dayflowhq/dayflow/internal/brain"
	"github.com/dayflowhq/dayflow/internal/calendar"
	"github.com/dayflowhq/dayflow/internal/config"
	"github.com/dayflowhq/dayflow/internal/handlers"
	"github.com/dayflowhq/dayflow/internal/parking"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

const testDate = "2025-06-10"

func newTestServer(t *testing.T) (*httptest.Server, *plan.Manager) {
	t.Helper()

	store, err := plan.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	manager := plan.NewManager(store, calendar.NewMockAdapter())
	manager.SetClock(func() time.Time {
		return time.Date(2025, 6, 10, 8, 0, 0, 0, time.Local)
	})

	parkingSvc := parking.NewService(parking.NewInMemoryStore())
	mock := brain.NewMockAdapter()

	factory := func(sessionID string) *router.Router {
		reward := handlers.NewRewardHandler(manager, parkingSvc, sessionID)
		return router.New(router.Config{
			Oracle: router.NewKeywordOracle(),
			Handlers: map[string]router.Handler{
				router.TargetPlanner: handlers.NewPlannerHandler(manager, mock, sessionID),
				router.TargetFocus:   handlers.NewFocusHandler(manager, mock, sessionID),
				router.TargetReward:  reward,
			},
			Capture: func(input string) string {
				return parkingSvc.Capture(sessionID, input)
			},
			EndOfDay:    reward,
			PlanContext: func() string { return manager.CurrentContext("") },
		})
	}

	s := New(config.Config{AllowAnyOrigin: true}, manager, factory, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv, manager
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func seedPlanHTTP(t *testing.T, srv *httptest.Server) {
	t.Helper()
	res := postJSON(t, srv.URL+"/v1/plan", mergePlanRequest{
		TargetDate: testDate,
		Tasks: []plan.Task{
			{Title: "Deep work", Start: "09:00", End: "10:00"},
			{Title: "Review PRs", Start: "10:00", End: "11:00"},
		},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("seed plan status = %d", res.StatusCode)
	}
	res.Body.Close()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestMergeAndGetPlan(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	res, err := http.Get(srv.URL + "/v1/plan?date=" + testDate)
	if err != nil {
		t.Fatalf("GET /v1/plan: %v", err)
	}
	var body struct {
		Path  string      `json:"path"`
		Tasks []plan.Task `json:"tasks"`
	}
	decodeBody(t, res, &body)
	if len(body.Tasks) != 2 || body.Tasks[0].Title != "Deep work" {
		t.Fatalf("unexpected plan: %+v", body)
	}

	res, err = http.Get(srv.URL + "/v1/plan?date=2025-01-01")
	if err != nil {
		t.Fatalf("GET missing plan: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing plan status = %d, want 404", res.StatusCode)
	}
}

func TestUpdatePlanConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	res := postJSON(t, srv.URL+"/v1/plan/update", plan.UpdateRequest{
		Ref:        "Review PRs",
		NewStart:   "09:30",
		NewEnd:     "10:30",
		TargetDate: testDate,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("conflict status = %d, want 409", res.StatusCode)
	}
	var body errorResponse
	decodeBody(t, res, &body)
	if len(body.Conflicts) != 1 || body.Conflicts[0] != "Deep work" {
		t.Fatalf("unexpected conflict body: %+v", body)
	}

	res = postJSON(t, srv.URL+"/v1/plan/update", plan.UpdateRequest{
		Ref:        "Review PRs",
		NewStart:   "09:30",
		NewEnd:     "10:30",
		TargetDate: testDate,
		Force:      true,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forced update status = %d", res.StatusCode)
	}
	var updated plan.UpdateResult
	decodeBody(t, res, &updated)
	if updated.Replaced != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
}

func TestShiftPlan(t *testing.T) {
	srv, manager := newTestServer(t)
	seedPlanHTTP(t, srv)

	res := postJSON(t, srv.URL+"/v1/plan/shift", shiftRequest{
		Anchor:       "Deep work",
		DelayMinutes: 30,
		TargetDate:   testDate,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("shift status = %d", res.StatusCode)
	}
	var body plan.ShiftResult
	decodeBody(t, res, &body)
	if body.Shifted != 1 || !body.Changed {
		t.Fatalf("unexpected shift result: %+v", body)
	}

	tasks, _, err := manager.Tasks(testDate)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	for _, task := range tasks {
		if task.Title == "Review PRs" && task.Start != testDate+" 10:30" {
			t.Fatalf("shift not persisted: %+v", task)
		}
	}
}

func TestCompleteTaskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	res := postJSON(t, srv.URL+"/v1/plan/complete", completeRequest{Ref: "deep"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", res.StatusCode)
	}
	var task plan.Task
	decodeBody(t, res, &task)
	if task.Status != plan.StatusDone {
		t.Fatalf("unexpected task: %+v", task)
	}

	res = postJSON(t, srv.URL+"/v1/plan/complete", completeRequest{Ref: "nothing here"})
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task status = %d, want 404", res.StatusCode)
	}
}

func TestDaySummaryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	res, err := http.Get(srv.URL + "/v1/plan/summary?date=" + testDate)
	if err != nil {
		t.Fatalf("GET summary: %v", err)
	}
	var body plan.DaySummary
	decodeBody(t, res, &body)
	if body.Total != 2 || body.Date != testDate {
		t.Fatalf("unexpected summary: %+v", body)
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	res := postJSON(t, srv.URL+"/v1/chat", chatRequest{Input: "hello"})
	var body chatResponse
	decodeBody(t, res, &body)
	if body.SessionID == "" || body.Status != router.StatusFinished {
		t.Fatalf("unexpected chat response: %+v", body)
	}

	res = postJSON(t, srv.URL+"/v1/chat", chatRequest{
		SessionID: body.SessionID,
		Input:     "remind me to buy milk",
	})
	var parked chatResponse
	decodeBody(t, res, &parked)
	if !strings.HasPrefix(parked.Content, "Logged:") {
		t.Fatalf("parking ack missing: %+v", parked)
	}

	res = postJSON(t, srv.URL+"/v1/chat", chatRequest{Input: ""})
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty input status = %d, want 400", res.StatusCode)
	}
}

func TestChatWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)
	seedPlanHTTP(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws?session_id=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp chatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.SessionID != "ws-test" || resp.Content == "" {
		t.Fatalf("unexpected ws response: %+v", resp)
	}
}
