package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

func newTestSynthesizer() *Synthesizer {
	s := NewSynthesizer(30 * time.Minute)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC) }
	return s
}

func eventOf(signals ...models.Signal) models.CorrelatedEvent {
	services := []string{}
	seen := map[string]struct{}{}
	severities := []models.Severity{}
	types := []models.SignalType{}
	for _, s := range signals {
		severities = append(severities, s.Severity)
		types = append(types, s.Type)
		if _, ok := seen[s.Service]; !ok && s.Service != "" {
			seen[s.Service] = struct{}{}
			services = append(services, s.Service)
		}
	}
	return models.CorrelatedEvent{
		EventID:          "event_test",
		Signals:          signals,
		ServicesAffected: services,
		PrimaryService:   signals[0].Service,
		Severity:         models.WorstSeverity(severities),
		SignalTypes:      types,
	}
}

func TestDecideDeploymentRollback(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "d1", Type: models.SignalTypeDeployment, Source: "argocd", Service: "payment-service", Severity: models.SeverityMedium},
		models.Signal{ID: "a1", Type: models.SignalTypeAlert, Source: "prometheus", Service: "payment-service", Severity: models.SeverityCritical, Message: "HighErrorRate"},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.DecisionType != models.DecisionRollback {
		t.Fatalf("decision type = %q, want rollback", decision.DecisionType)
	}
	// base 50 + 2 signals * 5 = 60, rollback boost +20
	if decision.Confidence != 80 {
		t.Errorf("confidence = %f, want 80", decision.Confidence)
	}
	if !decision.RequiresApproval {
		t.Error("rollback must require approval")
	}
	if decision.AutoExecutable {
		t.Error("rollback must not be auto-executable")
	}
	if decision.PrimaryAction != "rollback" {
		t.Errorf("primary action = %q", decision.PrimaryAction)
	}
	if decision.ActionParams["target"] != "previous_version" {
		t.Errorf("action params = %v", decision.ActionParams)
	}
	if !decision.ExpiresAt.After(decision.DecidedAt) {
		t.Error("decision must expire after it is made")
	}
}

func TestDecideSingleLowSeverityInvestigates(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "s1", Type: models.SignalTypeLog, Source: "loki", Service: "search", Severity: models.SeverityLow, Message: "slow query"},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.DecisionType != models.DecisionInvestigate {
		t.Fatalf("decision type = %q, want investigate", decision.DecisionType)
	}
	if decision.Confidence != 55 {
		t.Errorf("confidence = %f, want 55", decision.Confidence)
	}
	if !decision.RequiresApproval {
		t.Error("low-confidence decision must require approval")
	}
}

func TestDecideMemoryPatternAutoExecutable(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "k1", Type: models.SignalTypeAlert, Source: "kubernetes", Service: "search", Severity: models.SeverityHigh, Message: "OOMKilled"},
		models.Signal{ID: "l1", Type: models.SignalTypeLog, Source: "loki", Service: "search", Severity: models.SeverityHigh, Message: "out of memory"},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.DecisionType != models.DecisionRestart {
		t.Fatalf("decision type = %q, want restart", decision.DecisionType)
	}
	if decision.Confidence != 75 {
		t.Errorf("confidence = %f, want 75", decision.Confidence)
	}
	if !decision.AutoExecutable {
		t.Error("high-confidence restart on non-critical event should auto-execute")
	}
	if decision.RequiresApproval {
		t.Error("restart at confidence 75 should not require approval")
	}
}

func TestDecideCriticalSeverityNeverAutoExecutes(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "k1", Type: models.SignalTypeAlert, Source: "kubernetes", Service: "search", Severity: models.SeverityCritical, Message: "OOMKilled"},
		models.Signal{ID: "l1", Type: models.SignalTypeLog, Source: "loki", Service: "search", Severity: models.SeverityCritical, Message: "out of memory"},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.AutoExecutable {
		t.Error("critical events must never auto-execute")
	}
	if !decision.RequiresApproval {
		t.Error("critical events must require approval")
	}
}

func TestDecideRuleOrderFirstMatchWins(t *testing.T) {
	// Both the rollback and security rules match; the rollback rule is
	// declared first and must win.
	event := eventOf(
		models.Signal{ID: "d1", Type: models.SignalTypeDeployment, Source: "argocd", Service: "api", Severity: models.SeverityMedium},
		models.Signal{ID: "a1", Type: models.SignalTypeAlert, Source: "prometheus", Service: "api", Severity: models.SeverityHigh},
		models.Signal{ID: "x1", Type: models.SignalTypeSecurityEvent, Source: "falco", Service: "api", Severity: models.SeverityHigh},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.DecisionType != models.DecisionRollback {
		t.Fatalf("decision type = %q, want rollback (first matching rule)", decision.DecisionType)
	}
}

func TestDecideUnmatchedHighSeverityRemediates(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "t1", Type: models.SignalTypeTrace, Source: "tempo", Service: "cart", Severity: models.SeverityHigh, Message: "error span"},
		models.Signal{ID: "t2", Type: models.SignalTypeTrace, Source: "tempo", Service: "cart", Severity: models.SeverityHigh, Message: "error span"},
	)

	decision := newTestSynthesizer().Decide(event)
	if decision.DecisionType != models.DecisionAutoRemediate {
		t.Fatalf("decision type = %q, want auto_remediate", decision.DecisionType)
	}
	if decision.Confidence != 60 {
		t.Errorf("confidence = %f, want 60", decision.Confidence)
	}
}

func TestDecideConfidenceCapsAtBaseSeventy(t *testing.T) {
	var signals []models.Signal
	for i := 0; i < 8; i++ {
		signals = append(signals, models.Signal{
			ID: string(rune('a' + i)), Type: models.SignalTypeSecurityEvent,
			Source: "falco", Service: "api", Severity: models.SeverityHigh,
		})
	}
	decision := newTestSynthesizer().Decide(eventOf(signals...))
	// base capped at 70, security boost +25
	if decision.Confidence != 95 {
		t.Fatalf("confidence = %f, want 95", decision.Confidence)
	}
}

func TestRiskAssessmentMentionsDeployment(t *testing.T) {
	event := eventOf(
		models.Signal{ID: "d1", Type: models.SignalTypeDeployment, Source: "argocd", Service: "pay", Severity: models.SeverityMedium},
		models.Signal{ID: "a1", Type: models.SignalTypeAlert, Source: "prometheus", Service: "pay", Severity: models.SeverityCritical},
	)
	decision := newTestSynthesizer().Decide(event)
	if !strings.Contains(decision.RiskAssessment, "deployment") &&
		!strings.Contains(decision.RiskAssessment, "Deployment") {
		t.Fatalf("risk assessment %q should mention the deployment", decision.RiskAssessment)
	}
}
