package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autopilotstack/autopilot-core/internal/ingest"
	"github.com/autopilotstack/autopilot-core/internal/metrics"
	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/safety"
	"github.com/autopilotstack/autopilot-core/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngestSignal(w http.ResponseWriter, r *http.Request) {
	var signal models.Signal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid signal payload")
		return
	}
	if err := s.decision.IngestSignal(r.Context(), signal); err != nil {
		s.logger.Error("signal ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to ingest signal")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": signal.ID})
}

func (s *Server) handleIngestPrometheus(w http.ResponseWriter, r *http.Request) {
	var alerts []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&alerts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alerts payload")
		return
	}
	signals, err := ingest.FromPrometheusAlerts(r.Context(), s.decision, alerts)
	if err != nil {
		s.logger.Error("prometheus ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to ingest alerts")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"ingested": len(signals)})
}

func (s *Server) handleIngestKubernetes(w http.ResponseWriter, r *http.Request) {
	var events []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid events payload")
		return
	}
	signals, err := ingest.FromKubernetesEvents(r.Context(), s.decision, events)
	if err != nil {
		s.logger.Error("kubernetes ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to ingest events")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"ingested": len(signals)})
}

type deploymentRequest struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Deployer string `json:"deployer"`
	Status   string `json:"status"`
}

func (s *Server) handleIngestDeployment(w http.ResponseWriter, r *http.Request) {
	var req deploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment payload")
		return
	}
	if req.Service == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	signal, err := ingest.IngestDeployment(r.Context(), s.decision, req.Service, req.Version, req.Deployer, req.Status)
	if err != nil {
		s.logger.Error("deployment ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to ingest deployment")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": signal.ID})
}

func (s *Server) handleProcessAndDecide(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.decision.ProcessAndDecide(r.Context())
	if err != nil {
		s.logger.Error("decision run failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "decision run failed")
		return
	}
	if decisions == nil {
		decisions = []models.UnifiedDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handlePendingDecisions(w http.ResponseWriter, r *http.Request) {
	pending, err := s.decision.PendingDecisions(r.Context())
	if err != nil {
		s.logger.Error("pending decisions fetch failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list pending decisions")
		return
	}
	if pending == nil {
		pending = []models.UnifiedDecision{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	decision, err := s.decision.Decision(r.Context(), chi.URLParam(r, "decisionID"))
	if err != nil {
		if errors.Is(err, services.ErrDecisionNotFound) {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		s.logger.Error("decision fetch failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to fetch decision")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleExecuteDecision(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")
	result, err := s.decision.ExecuteDecision(r.Context(), decisionID, s.executor)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDecisionNotFound):
			writeError(w, http.StatusNotFound, "decision not found")
		case errors.Is(err, services.ErrApprovalRequired),
			errors.Is(err, services.ErrAlreadyExecuted),
			errors.Is(err, services.ErrDecisionExpired):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("decision execution failed", slog.String("decision_id", decisionID), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "execution failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.decision.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats fetch failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type safetyEvaluateRequest struct {
	ActionType string         `json:"action_type"`
	Service    string         `json:"service"`
	Context    safety.Context `json:"context"`
}

func (s *Server) handleSafetyEvaluate(w http.ResponseWriter, r *http.Request) {
	var req safetyEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid evaluation payload")
		return
	}
	if req.ActionType == "" || req.Service == "" {
		writeError(w, http.StatusBadRequest, "action_type and service are required")
		return
	}
	verdict := s.safety.Evaluate(r.Context(), req.ActionType, req.Service, req.Context)
	metrics.ObserveSafetyEvaluation(string(verdict.SafetyLevel))
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleListSafetyRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.safety.ListRules())
}

func (s *Server) handleAddSafetyRule(w http.ResponseWriter, r *http.Request) {
	var rule models.SafetyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule payload")
		return
	}
	if err := s.safety.AddRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": rule.ID})
}

func (s *Server) handleSafetyWisdom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.safety.WisdomForAction(chi.URLParam(r, "actionType")))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
