package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/store"
)

// Context captures the factors a safety evaluation may consult. Keys are
// factor names; values are strings, bools, or numbers. Unknown factors never
// satisfy a condition.
type Context map[string]any

// Evaluator judges whether a proposed action on a service is safe to execute
// autonomously. It owns the rule registry; AddRule may run concurrently with
// Evaluate.
type Evaluator struct {
	mu    sync.RWMutex
	rules map[string]models.SafetyRule

	tiers  []tierPattern
	stor   store.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewEvaluator constructs an Evaluator preloaded with the built-in rule set.
// The store is optional; when present it supplies live enrichment (active
// incidents, last deployment) and persists added rules.
func NewEvaluator(logger *slog.Logger, stor store.Provider) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		rules:  make(map[string]models.SafetyRule),
		tiers:  defaultServiceTiers(),
		stor:   stor,
		logger: logger,
		now:    time.Now,
	}
	for _, rule := range DefaultRules() {
		e.rules[rule.ID] = rule
	}
	logger.Info("safety rules loaded", slog.Int("count", len(e.rules)))
	return e
}

// Evaluate scores one action/service/context triple against the rule set.
// The fold over matched rules is monotonic along the safety lattice: a rule
// can only raise the final level, and a forbidden rule pins it.
func (e *Evaluator) Evaluate(ctx context.Context, actionType, service string, callerCtx Context) models.SafetyDecision {
	enriched := e.enrichContext(ctx, callerCtx, service)
	applicable := e.applicableRules(actionType, service)

	if len(applicable) == 0 {
		return models.SafetyDecision{
			ActionType:       actionType,
			Service:          service,
			IsSafe:           false,
			SafetyLevel:      models.SafetyRequiresReview,
			Confidence:       50,
			RulesApplied:     []string{},
			CanAutoExecute:   false,
			RequiresApproval: true,
			Blocked:          false,
			Reasoning:        "No safety rules defined for this action/service combination",
			Recommendations:  []string{"Define safety rules for this action type"},
			EscalationPath:   "oncall_engineer",
		}
	}

	finalLevel := models.SafetyAlwaysSafe
	blocked := false

	var (
		rulesApplied    []string
		checked         []models.CheckedCondition
		reasoning       []string
		recommendations []string
	)

	for _, rule := range applicable {
		rulesApplied = append(rulesApplied, rule.ID)

		if rule.SafetyLevel == models.SafetyForbidden {
			blocked = true
			finalLevel = models.SafetyForbidden
			reasoning = append(reasoning, fmt.Sprintf("BLOCKED by rule '%s': %s", rule.Name, rule.Rationale))
			recommendations = append(recommendations, rule.WhenToEscalate...)
			continue
		}

		safeMet := true
		for _, cond := range rule.SafeConditions {
			result := checkCondition(cond, enriched)
			checked = append(checked, models.CheckedCondition{RuleID: rule.ID, Condition: cond, Result: result})
			if !result {
				safeMet = false
			}
		}

		unsafeHit := false
		for _, cond := range rule.UnsafeConditions {
			result := checkCondition(cond, enriched)
			checked = append(checked, models.CheckedCondition{RuleID: rule.ID, Condition: cond, Result: result, Unsafe: true})
			if result {
				unsafeHit = true
				reasoning = append(reasoning, fmt.Sprintf("Unsafe condition met: %s", describeCondition(cond)))
			}
		}

		switch rule.SafetyLevel {
		case models.SafetyAlwaysSafe:
			// Unconditionally safe; contributes nothing to the fold.
		case models.SafetyConditionallySafe:
			if unsafeHit {
				finalLevel = models.MaxSafetyLevel(finalLevel, models.SafetyDangerous)
			} else if !safeMet {
				finalLevel = models.MaxSafetyLevel(finalLevel, models.SafetyRequiresReview)
			}
		default:
			finalLevel = models.MaxSafetyLevel(finalLevel, rule.SafetyLevel)
		}

		recommendations = append(recommendations, rule.WhatToCheckFirst...)
	}

	canAutoExecute := !blocked &&
		(finalLevel == models.SafetyAlwaysSafe || finalLevel == models.SafetyConditionallySafe)
	requiresApproval := finalLevel == models.SafetyRequiresReview || finalLevel == models.SafetyDangerous

	confidence := 60.0
	if canAutoExecute {
		confidence = 80
	}
	if len(checked) > 3 {
		confidence += 10
	}

	if len(reasoning) == 0 {
		if canAutoExecute {
			reasoning = append(reasoning, "All safety conditions met - safe for autonomous execution")
		} else {
			reasoning = append(reasoning, "Safety conditions not fully satisfied")
		}
	}

	escalation := ""
	if blocked {
		escalation = "senior_engineer"
	} else if requiresApproval {
		escalation = "oncall"
	}

	return models.SafetyDecision{
		ActionType:        actionType,
		Service:           service,
		IsSafe:            canAutoExecute,
		SafetyLevel:       finalLevel,
		Confidence:        confidence,
		RulesApplied:      rulesApplied,
		ConditionsChecked: checked,
		CanAutoExecute:    canAutoExecute,
		RequiresApproval:  requiresApproval,
		Blocked:           blocked,
		Reasoning:         strings.Join(reasoning, " | "),
		Recommendations:   dedupeLimit(recommendations, 5),
		EscalationPath:    escalation,
	}
}

// AddRule registers a rule, immediately visible to subsequent evaluations.
// When a store is configured the rule is persisted for other replicas.
func (e *Evaluator) AddRule(ctx context.Context, rule models.SafetyRule) error {
	if rule.ID == "" {
		return fmt.Errorf("safety rule id is required")
	}

	e.mu.Lock()
	e.rules[rule.ID] = rule
	e.mu.Unlock()

	if e.stor != nil {
		data, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("marshal safety rule: %w", err)
		}
		if err := e.stor.Set(ctx, "safety_rule:"+rule.ID, data, 0); err != nil {
			return fmt.Errorf("persist safety rule: %w", err)
		}
	}

	e.logger.Info("safety rule added", slog.String("rule", rule.Name))
	return nil
}

// Rule returns a rule by ID.
func (e *Evaluator) Rule(id string) (models.SafetyRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.rules[id]
	return rule, ok
}

// RuleSummary is the listing view of a safety rule.
type RuleSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	SafetyLevel models.SafetyLevel `json:"safety_level"`
	Actions     []string           `json:"actions"`
	Services    []string           `json:"services"`
}

// ListRules returns summaries of all registered rules.
func (e *Evaluator) ListRules() []RuleSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RuleSummary, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, RuleSummary{
			ID:          rule.ID,
			Name:        rule.Name,
			SafetyLevel: rule.SafetyLevel,
			Actions:     rule.ActionTypes,
			Services:    rule.Services,
		})
	}
	return out
}

// Wisdom aggregates the human-authored guidance attached to all rules
// matching an action type.
type Wisdom struct {
	ActionType       string   `json:"action_type"`
	RulesCount       int      `json:"rules_count"`
	CommonMistakes   []string `json:"common_mistakes"`
	WhatToCheckFirst []string `json:"what_to_check_first"`
	WhenToEscalate   []string `json:"when_to_escalate"`
	Rationale        []string `json:"rationale"`
}

// WisdomForAction collects the encoded operational guidance for an action type.
func (e *Evaluator) WisdomForAction(actionType string) Wisdom {
	e.mu.RLock()
	defer e.mu.RUnlock()

	wisdom := Wisdom{ActionType: actionType}
	for _, rule := range e.rules {
		if !matchesAnyAction(rule.ActionTypes, actionType) {
			continue
		}
		wisdom.RulesCount++
		wisdom.CommonMistakes = append(wisdom.CommonMistakes, rule.CommonMistakes...)
		wisdom.WhatToCheckFirst = append(wisdom.WhatToCheckFirst, rule.WhatToCheckFirst...)
		wisdom.WhenToEscalate = append(wisdom.WhenToEscalate, rule.WhenToEscalate...)
		if rule.Rationale != "" {
			wisdom.Rationale = append(wisdom.Rationale, rule.Rationale)
		}
	}
	wisdom.CommonMistakes = dedupeLimit(wisdom.CommonMistakes, 0)
	wisdom.WhatToCheckFirst = dedupeLimit(wisdom.WhatToCheckFirst, 0)
	wisdom.WhenToEscalate = dedupeLimit(wisdom.WhenToEscalate, 0)
	return wisdom
}

func (e *Evaluator) applicableRules(actionType, service string) []models.SafetyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var applicable []models.SafetyRule
	for _, rule := range e.rules {
		if !matchesAnyAction(rule.ActionTypes, actionType) {
			continue
		}
		if !matchesAnyService(rule.Services, service) {
			continue
		}
		applicable = append(applicable, rule)
	}
	return applicable
}

func matchesAnyAction(patterns []string, actionType string) bool {
	for _, p := range patterns {
		if p == "*" || actionType == p {
			return true
		}
		if strings.Contains(p, "*") && strings.HasPrefix(actionType, strings.ReplaceAll(p, "*", "")) {
			return true
		}
	}
	return false
}

func matchesAnyService(patterns []string, service string) bool {
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasSuffix(p, "*"):
			if strings.HasPrefix(service, strings.TrimSuffix(p, "*")) {
				return true
			}
		case strings.HasPrefix(p, "*"):
			if strings.HasSuffix(service, strings.TrimPrefix(p, "*")) {
				return true
			}
		case service == p:
			return true
		}
	}
	return false
}

// enrichContext layers clock flags, the service tier, and live store state
// over the caller-supplied context.
func (e *Evaluator) enrichContext(ctx context.Context, callerCtx Context, service string) Context {
	enriched := make(Context, len(callerCtx)+8)
	for k, v := range callerCtx {
		enriched[k] = v
	}

	now := e.now().UTC()
	weekday := pythonWeekday(now.Weekday())
	enriched["current_hour"] = now.Hour()
	enriched["current_day"] = weekday
	enriched["is_weekend"] = weekday >= 5
	enriched["is_off_peak"] = now.Hour() < 8 || now.Hour() > 22
	enriched["is_peak"] = now.Hour() >= 9 && now.Hour() <= 17 && weekday < 5

	enriched["service_tier"] = e.serviceTier(service)

	if e.stor != nil {
		// Store errors leave the factors unknown, which conditions treat as
		// not met.
		if incidents, err := e.stor.ListRange(ctx, "active_incidents:"+service, 0, 5); err == nil {
			enriched["active_incidents"] = len(incidents) > 0
			enriched["incident_count"] = len(incidents)
		}
		if raw, err := e.stor.Get(ctx, "last_deployment:"+service); err == nil {
			if deployTS, err := strconv.ParseFloat(string(raw), 64); err == nil {
				ageMinutes := (float64(now.Unix()) - deployTS) / 60
				enriched["deployment_age_minutes"] = ageMinutes
				enriched["recent_deployment"] = ageMinutes < 15
			}
		}
	}

	return enriched
}

func (e *Evaluator) serviceTier(service string) int {
	lower := strings.ToLower(service)
	for _, tp := range e.tiers {
		if strings.Contains(lower, tp.pattern) {
			return tp.tier
		}
	}
	return 2
}

// checkCondition evaluates a single tagged condition against the context.
// Unknown factors fail closed.
func checkCondition(cond models.SafetyCondition, ctx Context) bool {
	raw, ok := ctx[cond.Factor]
	if !ok || raw == nil {
		return false
	}

	if cond.Value != nil {
		return equalValues(raw, cond.Value)
	}

	num, ok := toFloat(raw)
	if !ok {
		return false
	}
	switch {
	case cond.MinValue != nil && cond.MaxValue != nil:
		return num >= *cond.MinValue && num <= *cond.MaxValue
	case cond.MinValue != nil:
		return num >= *cond.MinValue
	case cond.MaxValue != nil:
		return num <= *cond.MaxValue
	default:
		return false
	}
}

// equalValues compares an exact-match operand against a context value,
// tolerating the numeric type drift JSON and YAML decoding introduce.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func describeCondition(cond models.SafetyCondition) string {
	switch {
	case cond.Value != nil:
		return fmt.Sprintf("%s=%v", cond.Factor, cond.Value)
	case cond.MinValue != nil && cond.MaxValue != nil:
		return fmt.Sprintf("%s in [%v, %v]", cond.Factor, *cond.MinValue, *cond.MaxValue)
	case cond.MinValue != nil:
		return fmt.Sprintf("%s >= %v", cond.Factor, *cond.MinValue)
	case cond.MaxValue != nil:
		return fmt.Sprintf("%s <= %v", cond.Factor, *cond.MaxValue)
	default:
		return cond.Factor
	}
}

// pythonWeekday maps Go weekdays onto Monday=0..Sunday=6 so the weekend and
// peak checks line up with the tier tables this rule set was authored against.
func pythonWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func dedupeLimit(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
