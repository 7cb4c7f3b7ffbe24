package httpapi

import (
	"net/http"
	"strings"

	"github.com/dayflowhq/dayflow/internal/plan"
)

type mergePlanRequest struct {
	Tasks      []plan.Task `json:"tasks"`
	TargetDate string      `json:"target_date,omitempty"`
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	tasks, path, err := s.plans.Tasks(date)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"path":  path,
		"tasks": tasks,
	})
}

func (s *Server) handleMergePlan(w http.ResponseWriter, r *http.Request) {
	var req mergePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.plans.CreateOrMergePlan(r.Context(), req.Tasks, req.TargetDate)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req plan.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.plans.UpdateSchedule(r.Context(), req)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type shiftRequest struct {
	Anchor       string `json:"anchor"`
	DelayMinutes int    `json:"delay_minutes"`
	TargetDate   string `json:"target_date,omitempty"`
}

func (s *Server) handleShiftPlan(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.plans.ShiftRemaining(r.Context(), req.Anchor, req.DelayMinutes, req.TargetDate)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type completeRequest struct {
	Ref string `json:"ref"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Ref) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "ref is required")
		return
	}

	task, err := s.plans.CompleteTask(req.Ref)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	summary, err := s.plans.DaySummaryFor(date)
	if err != nil {
		respondPlanError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePlanContext(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	respondJSON(w, http.StatusOK, map[string]string{
		"context": s.plans.CurrentContext(date),
	})
}
