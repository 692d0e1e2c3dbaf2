package models

import "time"

// DecisionType enumerates the operational verdicts the synthesizer can reach.
type DecisionType string

const (
	DecisionNoAction       DecisionType = "no_action"
	DecisionInvestigate    DecisionType = "investigate"
	DecisionAutoRemediate  DecisionType = "auto_remediate"
	DecisionManualApproval DecisionType = "manual_approval"
	DecisionEscalate       DecisionType = "escalate"
	DecisionRollback       DecisionType = "rollback"
	DecisionScale          DecisionType = "scale"
	DecisionRestart        DecisionType = "restart"
	DecisionPageOncall     DecisionType = "page_oncall"
)

// FallbackAction names an alternative action and the condition that triggers it.
type FallbackAction struct {
	Action    string `json:"action"`
	Condition string `json:"condition"`
}

// ExecutionResult is what the external executor reports back after acting on
// a decision.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// UnifiedDecision is the synthesized operational verdict for one correlated
// event. RequiresApproval and AutoExecutable are computed once at decision
// time and never recomputed; the only permitted mutation is appending the
// execution result.
type UnifiedDecision struct {
	DecisionID   string       `json:"decision_id"`
	DecisionType DecisionType `json:"decision_type"`
	Confidence   float64      `json:"confidence"`

	CorrelatedEvent  CorrelatedEvent `json:"correlated_event"`
	SignalsAnalyzed  int             `json:"signals_analyzed"`
	ServicesAffected []string        `json:"services_affected"`

	PrimaryAction   string           `json:"primary_action"`
	ActionParams    map[string]any   `json:"action_params"`
	FallbackActions []FallbackAction `json:"fallback_actions"`

	Reasoning           string   `json:"reasoning"`
	ContributingFactors []string `json:"contributing_factors"`
	RiskAssessment      string   `json:"risk_assessment"`

	RequiresApproval        bool   `json:"requires_approval"`
	AutoExecutable          bool   `json:"auto_executable"`
	EstimatedImpact         string `json:"estimated_impact"`
	EstimatedResolutionTime string `json:"estimated_resolution_time"`

	DecidedAt time.Time `json:"decided_at"`
	ExpiresAt time.Time `json:"expires_at"`

	ExecutedAt      *time.Time       `json:"executed_at,omitempty"`
	ExecutionResult *ExecutionResult `json:"execution_result,omitempty"`
}

// Expired reports whether the decision is past its advisory TTL at the given
// instant.
func (d *UnifiedDecision) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// DecisionStats summarises decision throughput for dashboards.
type DecisionStats struct {
	SignalsProcessed    int64                `json:"signals_processed"`
	TotalDecisions      int                  `json:"total_decisions"`
	DecisionsByType     map[DecisionType]int `json:"decisions_by_type"`
	ExecutedDecisions   int                  `json:"executed_decisions"`
	PendingApproval     int                  `json:"pending_approval"`
	CorrelationWindow   int                  `json:"correlation_window_seconds"`
	MinCorrelationScore float64              `json:"min_correlation_score"`
}
