package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

// DefaultDecisionTTL bounds how long a decision stays actionable.
const DefaultDecisionTTL = 30 * time.Minute

// decisionRule pairs a predicate over a correlated event with the verdict it
// produces. Rules are evaluated in declared order and the first match wins.
type decisionRule struct {
	name            string
	matches         func(event models.CorrelatedEvent) bool
	decisionType    models.DecisionType
	confidenceBoost float64
	reasoning       string
}

// Synthesizer turns correlated events into unified operational decisions.
// Decide is pure; persistence is the caller's concern.
type Synthesizer struct {
	DecisionTTL time.Duration

	rules []decisionRule
	now   func() time.Time
}

// NewSynthesizer constructs a Synthesizer with the built-in rule table.
func NewSynthesizer(decisionTTL time.Duration) *Synthesizer {
	if decisionTTL <= 0 {
		decisionTTL = DefaultDecisionTTL
	}
	return &Synthesizer{
		DecisionTTL: decisionTTL,
		rules:       defaultDecisionRules(),
		now:         time.Now,
	}
}

func defaultDecisionRules() []decisionRule {
	return []decisionRule{
		{
			name: "deployment_correlation_rollback",
			matches: func(event models.CorrelatedEvent) bool {
				return anySignal(event, func(s models.Signal) bool {
					return s.Type == models.SignalTypeDeployment
				}) && anySignal(event, func(s models.Signal) bool {
					if s.Type != models.SignalTypeAlert && s.Type != models.SignalTypeMetric {
						return false
					}
					return s.Severity == models.SeverityHigh || s.Severity == models.SeverityCritical
				})
			},
			decisionType:    models.DecisionRollback,
			confidenceBoost: 20,
			reasoning:       "Deployment correlates with high-severity alerts",
		},
		{
			name: "multi_service_cascade",
			matches: func(event models.CorrelatedEvent) bool {
				return len(event.ServicesAffected) >= 3
			},
			decisionType:    models.DecisionEscalate,
			confidenceBoost: 15,
			reasoning:       "Multiple services affected - potential cascade failure",
		},
		{
			name: "latency_scale_pattern",
			matches: func(event models.CorrelatedEvent) bool {
				return anySignal(event, func(s models.Signal) bool {
					return strings.Contains(strings.ToLower(s.Message), "latency")
				}) && anySignal(event, func(s models.Signal) bool {
					return s.Type == models.SignalTypeMetric
				})
			},
			decisionType:    models.DecisionScale,
			confidenceBoost: 10,
			reasoning:       "Latency issues detected - scaling may help",
		},
		{
			name: "memory_restart_pattern",
			matches: func(event models.CorrelatedEvent) bool {
				return anySignal(event, func(s models.Signal) bool {
					msg := strings.ToLower(s.Message)
					return strings.Contains(msg, "memory") || strings.Contains(msg, "oom")
				})
			},
			decisionType:    models.DecisionRestart,
			confidenceBoost: 15,
			reasoning:       "Memory pressure detected - restart may release resources",
		},
		{
			name: "security_event_escalate",
			matches: func(event models.CorrelatedEvent) bool {
				return anySignal(event, func(s models.Signal) bool {
					return s.Type == models.SignalTypeSecurityEvent
				})
			},
			decisionType:    models.DecisionEscalate,
			confidenceBoost: 25,
			reasoning:       "Security event requires immediate attention",
		},
		{
			name: "single_low_severity",
			matches: func(event models.CorrelatedEvent) bool {
				return len(event.Signals) == 1 && event.Signals[0].Severity == models.SeverityLow
			},
			decisionType:    models.DecisionInvestigate,
			confidenceBoost: 0,
			reasoning:       "Single low-severity signal - investigate but no immediate action",
		},
	}
}

// Decide synthesizes a unified decision for one correlated event.
func (s *Synthesizer) Decide(event models.CorrelatedEvent) models.UnifiedDecision {
	base := 50 + float64(len(event.Signals))*5
	if base > 70 {
		base = 70
	}

	var (
		decisionType models.DecisionType
		confidence   float64
		reasoning    string
	)

	matched := false
	for _, rule := range s.rules {
		if rule.matches(event) {
			decisionType = rule.decisionType
			confidence = base + rule.confidenceBoost
			if confidence > 100 {
				confidence = 100
			}
			reasoning = rule.reasoning
			matched = true
			break
		}
	}

	if !matched {
		if event.Severity == models.SeverityCritical || event.Severity == models.SeverityHigh {
			decisionType = models.DecisionAutoRemediate
			confidence = base
			reasoning = "High severity event requires remediation"
		} else {
			decisionType = models.DecisionInvestigate
			confidence = base - 10
			reasoning = "Event requires investigation"
		}
	}

	action, params := actionForDecision(decisionType)

	factors := make([]string, 0, 5)
	for _, sig := range event.Signals {
		if len(factors) == 5 {
			break
		}
		factors = append(factors, fmt.Sprintf("%s: %s", sig.Source, truncate(sig.Message, 50)))
	}

	autoExecutable := confidence >= 75 &&
		(decisionType == models.DecisionScale || decisionType == models.DecisionRestart) &&
		event.Severity != models.SeverityCritical

	requiresApproval := confidence < 70 ||
		decisionType == models.DecisionRollback ||
		decisionType == models.DecisionEscalate ||
		event.Severity == models.SeverityCritical

	now := s.now().UTC()

	return models.UnifiedDecision{
		DecisionID:       fmt.Sprintf("decision_%s_%d", event.EventID, now.Unix()),
		DecisionType:     decisionType,
		Confidence:       confidence,
		CorrelatedEvent:  event,
		SignalsAnalyzed:  len(event.Signals),
		ServicesAffected: event.ServicesAffected,
		PrimaryAction:    action,
		ActionParams:     params,
		FallbackActions: []models.FallbackAction{
			{Action: "escalate", Condition: "primary_fails"},
			{Action: "page_oncall", Condition: "no_improvement_5min"},
		},
		Reasoning:               reasoning,
		ContributingFactors:     factors,
		RiskAssessment:          assessRisk(event, decisionType),
		RequiresApproval:        requiresApproval,
		AutoExecutable:          autoExecutable,
		EstimatedImpact:         estimateImpact(event),
		EstimatedResolutionTime: estimateResolutionTime(decisionType),
		DecidedAt:               now,
		ExpiresAt:               now.Add(s.DecisionTTL),
	}
}

func actionForDecision(decisionType models.DecisionType) (string, map[string]any) {
	switch decisionType {
	case models.DecisionRollback:
		return "rollback", map[string]any{"target": "previous_version"}
	case models.DecisionScale:
		return "scale_up", map[string]any{"factor": 2}
	case models.DecisionRestart:
		return "restart_service", map[string]any{}
	case models.DecisionEscalate:
		return "page_oncall", map[string]any{"urgency": "high"}
	case models.DecisionAutoRemediate:
		return "analyze_and_fix", map[string]any{}
	case models.DecisionInvestigate:
		return "create_investigation", map[string]any{}
	case models.DecisionManualApproval:
		return "await_approval", map[string]any{}
	default:
		return "investigate", map[string]any{}
	}
}

func assessRisk(event models.CorrelatedEvent, decisionType models.DecisionType) string {
	var risks []string

	if len(event.ServicesAffected) > 2 {
		risks = append(risks, "Multiple services affected")
	}
	if decisionType == models.DecisionRollback {
		risks = append(risks, "Rollback may cause brief service interruption")
	}
	if event.Severity == models.SeverityCritical {
		risks = append(risks, "Critical severity - high stakes")
	}
	for _, t := range event.SignalTypes {
		if t == models.SignalTypeDeployment {
			risks = append(risks, "Recent deployment involved")
			break
		}
	}

	switch len(risks) {
	case 0:
		return "Low risk - standard operation"
	case 1:
		return fmt.Sprintf("Moderate risk: %s", risks[0])
	default:
		return fmt.Sprintf("High risk: %s", strings.Join(risks, "; "))
	}
}

func estimateImpact(event models.CorrelatedEvent) string {
	serviceCount := len(event.ServicesAffected)
	switch {
	case event.Severity == models.SeverityCritical || serviceCount >= 3:
		return "High - Significant user impact expected"
	case event.Severity == models.SeverityHigh || serviceCount == 2:
		return "Medium - Some users may be affected"
	default:
		return "Low - Limited or no user impact"
	}
}

func estimateResolutionTime(decisionType models.DecisionType) string {
	switch decisionType {
	case models.DecisionRestart:
		return "2-5 minutes"
	case models.DecisionScale:
		return "5-10 minutes"
	case models.DecisionRollback:
		return "5-15 minutes"
	case models.DecisionAutoRemediate:
		return "5-20 minutes"
	case models.DecisionInvestigate:
		return "30-60 minutes"
	case models.DecisionEscalate:
		return "Depends on oncall response"
	default:
		return "Unknown"
	}
}

func anySignal(event models.CorrelatedEvent, match func(models.Signal) bool) bool {
	for _, s := range event.Signals {
		if match(s) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
