package models

// SafetyLevel classifies how much caution an action demands. The ordering is
// total and monotonic: evaluation may only raise the level, never lower it.
type SafetyLevel string

const (
	SafetyAlwaysSafe        SafetyLevel = "always_safe"
	SafetyConditionallySafe SafetyLevel = "conditionally_safe"
	SafetyRequiresReview    SafetyLevel = "requires_review"
	SafetyDangerous         SafetyLevel = "dangerous"
	SafetyForbidden         SafetyLevel = "forbidden"
)

// Restrictiveness returns the position of the level in the safety lattice,
// from least (0) to most restrictive. Unknown levels rank as requires_review.
func (l SafetyLevel) Restrictiveness() int {
	switch l {
	case SafetyAlwaysSafe:
		return 0
	case SafetyConditionallySafe:
		return 1
	case SafetyRequiresReview:
		return 2
	case SafetyDangerous:
		return 3
	case SafetyForbidden:
		return 4
	default:
		return 2
	}
}

// MaxSafetyLevel returns the more restrictive of two levels.
func MaxSafetyLevel(a, b SafetyLevel) SafetyLevel {
	if b.Restrictiveness() > a.Restrictiveness() {
		return b
	}
	return a
}

// SafetyCondition is a data-driven predicate over the enriched evaluation
// context: either an exact-value match or a numeric min/max range. An unknown
// context factor never satisfies a condition.
type SafetyCondition struct {
	Factor   string   `json:"factor" yaml:"factor"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
	MinValue *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
}

// SafetyRule is one declarative policy unit encoding operational judgment.
type SafetyRule struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	ActionTypes []string `json:"action_types" yaml:"action_types"`
	Services    []string `json:"services" yaml:"services"`

	SafetyLevel SafetyLevel `json:"safety_level" yaml:"safety_level"`

	SafeConditions   []SafetyCondition `json:"safe_conditions,omitempty" yaml:"safe_conditions,omitempty"`
	UnsafeConditions []SafetyCondition `json:"unsafe_conditions,omitempty" yaml:"unsafe_conditions,omitempty"`

	// Guardrails are advisory; enforcement belongs to the executor.
	MaxConcurrent   int `json:"max_concurrent" yaml:"max_concurrent"`
	CooldownSeconds int `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	MaxPerHour      int `json:"max_per_hour" yaml:"max_per_hour"`

	Rationale        string   `json:"rationale" yaml:"rationale"`
	CommonMistakes   []string `json:"common_mistakes,omitempty" yaml:"common_mistakes,omitempty"`
	WhatToCheckFirst []string `json:"what_to_check_first,omitempty" yaml:"what_to_check_first,omitempty"`
	WhenToEscalate   []string `json:"when_to_escalate,omitempty" yaml:"when_to_escalate,omitempty"`

	CreatedBy    string `json:"created_by" yaml:"created_by"`
	ApprovedBy   string `json:"approved_by" yaml:"approved_by"`
	LastReviewed string `json:"last_reviewed" yaml:"last_reviewed"`
}

// CheckedCondition records the outcome of evaluating a single condition.
type CheckedCondition struct {
	RuleID    string          `json:"rule"`
	Condition SafetyCondition `json:"condition"`
	Result    bool            `json:"result"`
	Unsafe    bool            `json:"is_unsafe,omitempty"`
}

// SafetyDecision is the pure-function result of evaluating one
// action/service/context triple. It is never persisted by the evaluator.
type SafetyDecision struct {
	ActionType  string      `json:"action_type"`
	Service     string      `json:"service"`
	IsSafe      bool        `json:"is_safe"`
	SafetyLevel SafetyLevel `json:"safety_level"`
	Confidence  float64     `json:"confidence"`

	RulesApplied      []string           `json:"rules_applied"`
	ConditionsChecked []CheckedCondition `json:"conditions_checked"`

	CanAutoExecute   bool `json:"can_auto_execute"`
	RequiresApproval bool `json:"requires_approval"`
	Blocked          bool `json:"blocked"`

	Reasoning       string   `json:"reasoning"`
	Recommendations []string `json:"recommendations"`
	EscalationPath  string   `json:"escalation_path,omitempty"`
}
