package safety

import (
	"context"
	"testing"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/store"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e := NewEvaluator(nil, store.NewMemoryStore())
	// Tuesday 14:00 UTC: peak hours, not weekend.
	e.now = func() time.Time { return time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC) }
	return e
}

func TestEvaluateNoMatchingRuleIsConservative(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "reboot_hypervisor", "payment-service", nil)
	if decision.SafetyLevel != models.SafetyRequiresReview {
		t.Fatalf("safety level = %q, want requires_review", decision.SafetyLevel)
	}
	if decision.CanAutoExecute {
		t.Error("unknown action must not auto-execute")
	}
	if !decision.RequiresApproval {
		t.Error("unknown action must require approval")
	}
	if decision.Confidence != 50 {
		t.Errorf("confidence = %f, want 50", decision.Confidence)
	}
	if decision.Blocked {
		t.Error("unknown action is conservative, not blocked")
	}
}

func TestEvaluateTier4RestartAlwaysSafe(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "restart_service", "dev-tools", Context{})
	if decision.SafetyLevel != models.SafetyAlwaysSafe {
		t.Fatalf("safety level = %q, want always_safe", decision.SafetyLevel)
	}
	if !decision.CanAutoExecute {
		t.Error("tier-4 restart should auto-execute")
	}
	if decision.RequiresApproval {
		t.Error("tier-4 restart should not require approval")
	}
	if decision.Confidence != 80 {
		t.Errorf("confidence = %f, want 80", decision.Confidence)
	}
}

func TestEvaluateRecentRollbackIsSafe(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "rollback", "payment-service", Context{
		"deployment_age_minutes":   10.0,
		"previous_version_healthy": true,
		"database_migration":       false,
	})
	if decision.SafetyLevel != models.SafetyAlwaysSafe {
		t.Fatalf("safety level = %q, want always_safe", decision.SafetyLevel)
	}
	if !decision.CanAutoExecute {
		t.Error("recent healthy rollback should auto-execute")
	}
	// Five conditions checked pushes confidence from 80 to 90.
	if decision.Confidence != 90 {
		t.Errorf("confidence = %f, want 90", decision.Confidence)
	}
}

func TestEvaluateRollbackAfterMigrationIsDangerous(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "rollback", "payment-service", Context{
		"deployment_age_minutes":   10.0,
		"previous_version_healthy": true,
		"database_migration":       true,
	})
	if decision.SafetyLevel != models.SafetyDangerous {
		t.Fatalf("safety level = %q, want dangerous", decision.SafetyLevel)
	}
	if decision.CanAutoExecute {
		t.Error("rollback over a migration must not auto-execute")
	}
	if !decision.RequiresApproval {
		t.Error("dangerous verdict must require approval")
	}
}

func TestEvaluateUnmetSafeConditionsRequireReview(t *testing.T) {
	e := newTestEvaluator(t)

	// No context supplied: the rollback rule's safe conditions reference
	// unknown factors, which fail closed.
	decision := e.Evaluate(context.Background(), "rollback", "payment-service", nil)
	if decision.SafetyLevel != models.SafetyRequiresReview {
		t.Fatalf("safety level = %q, want requires_review", decision.SafetyLevel)
	}
	if decision.CanAutoExecute {
		t.Error("unknown factors must fail closed")
	}
	if decision.EscalationPath != "oncall" {
		t.Errorf("escalation path = %q, want oncall", decision.EscalationPath)
	}
}

func TestEvaluateDatabaseFailoverBlocked(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "database_failover", "orders-db", Context{
		"replication_lag": 0,
	})
	if decision.SafetyLevel != models.SafetyForbidden {
		t.Fatalf("safety level = %q, want forbidden", decision.SafetyLevel)
	}
	if !decision.Blocked {
		t.Error("forbidden action must be blocked")
	}
	if decision.CanAutoExecute {
		t.Error("forbidden action must not auto-execute")
	}
	// Blocked is terminal: there is nothing to approve.
	if decision.RequiresApproval {
		t.Error("blocked action is not approvable")
	}
	if decision.EscalationPath != "senior_engineer" {
		t.Errorf("escalation path = %q, want senior_engineer", decision.EscalationPath)
	}
}

func TestEvaluateForbiddenPinsLevel(t *testing.T) {
	e := newTestEvaluator(t)

	// An extra always-safe rule for the same action must not soften the
	// forbidden verdict.
	err := e.AddRule(context.Background(), models.SafetyRule{
		ID:          "failover_test_override",
		Name:        "Failover Override Attempt",
		ActionTypes: []string{"database_failover"},
		Services:    []string{"*"},
		SafetyLevel: models.SafetyAlwaysSafe,
	})
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	decision := e.Evaluate(context.Background(), "database_failover", "orders-db", nil)
	if decision.SafetyLevel != models.SafetyForbidden {
		t.Fatalf("safety level = %q, forbidden must pin the fold", decision.SafetyLevel)
	}
	if !decision.Blocked {
		t.Error("forbidden action must stay blocked")
	}
}

func TestAddRuleVisibleToEvaluate(t *testing.T) {
	e := newTestEvaluator(t)

	before := e.Evaluate(context.Background(), "rotate_logs", "logging-agent", nil)
	if before.SafetyLevel != models.SafetyRequiresReview {
		t.Fatalf("expected conservative verdict before rule exists, got %q", before.SafetyLevel)
	}

	err := e.AddRule(context.Background(), models.SafetyRule{
		ID:          "rotate_logs_safe",
		Name:        "Log Rotation",
		ActionTypes: []string{"rotate_logs"},
		Services:    []string{"logging*"},
		SafetyLevel: models.SafetyAlwaysSafe,
	})
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	after := e.Evaluate(context.Background(), "rotate_logs", "logging-agent", nil)
	if after.SafetyLevel != models.SafetyAlwaysSafe {
		t.Fatalf("safety level = %q, want always_safe after rule added", after.SafetyLevel)
	}
	if !after.CanAutoExecute {
		t.Error("newly permitted action should auto-execute")
	}
}

func TestAddRuleRequiresID(t *testing.T) {
	e := newTestEvaluator(t)
	if err := e.AddRule(context.Background(), models.SafetyRule{Name: "anonymous"}); err == nil {
		t.Fatal("expected error for rule without id")
	}
}

func TestScaleUpUnsafeFactorRaisesToDangerous(t *testing.T) {
	e := newTestEvaluator(t)

	decision := e.Evaluate(context.Background(), "scale_up", "cart-service", Context{
		"scale_factor":    5,
		"target_replicas": 10,
	})
	if decision.SafetyLevel != models.SafetyDangerous {
		t.Fatalf("safety level = %q, want dangerous for scale factor 5", decision.SafetyLevel)
	}
}

func TestEnrichContextClockAndTier(t *testing.T) {
	e := newTestEvaluator(t)

	ctx := e.enrichContext(context.Background(), Context{"custom": 1}, "payment-service")
	if ctx["custom"] != 1 {
		t.Error("caller context must be preserved")
	}
	if ctx["current_hour"] != 14 {
		t.Errorf("current_hour = %v", ctx["current_hour"])
	}
	if ctx["current_day"] != 1 {
		t.Errorf("current_day = %v, want 1 for Tuesday", ctx["current_day"])
	}
	if ctx["is_weekend"] != false {
		t.Errorf("is_weekend = %v", ctx["is_weekend"])
	}
	if ctx["is_peak"] != true {
		t.Errorf("is_peak = %v", ctx["is_peak"])
	}
	if ctx["is_off_peak"] != false {
		t.Errorf("is_off_peak = %v", ctx["is_off_peak"])
	}
	if ctx["service_tier"] != 1 {
		t.Errorf("service_tier = %v, want 1", ctx["service_tier"])
	}
}

func TestServiceTierDefaultsToTwo(t *testing.T) {
	e := newTestEvaluator(t)
	if tier := e.serviceTier("mystery-widget"); tier != 2 {
		t.Fatalf("tier = %d, want 2", tier)
	}
	if tier := e.serviceTier("staging-env"); tier != 4 {
		t.Fatalf("tier = %d, want 4", tier)
	}
}

func TestCheckConditionFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		cond models.SafetyCondition
		ctx  Context
		want bool
	}{
		{"unknown factor", models.SafetyCondition{Factor: "missing", Value: true}, Context{}, false},
		{"exact match bool", models.SafetyCondition{Factor: "f", Value: true}, Context{"f": true}, true},
		{"exact match numeric drift", models.SafetyCondition{Factor: "f", Value: 1}, Context{"f": 1.0}, true},
		{"min met", models.SafetyCondition{Factor: "f", MinValue: floatPtr(10)}, Context{"f": 15}, true},
		{"min unmet", models.SafetyCondition{Factor: "f", MinValue: floatPtr(10)}, Context{"f": 5}, false},
		{"max met", models.SafetyCondition{Factor: "f", MaxValue: floatPtr(10)}, Context{"f": 5.0}, true},
		{"range", models.SafetyCondition{Factor: "f", MinValue: floatPtr(1), MaxValue: floatPtr(10)}, Context{"f": 10}, true},
		{"non-numeric against range", models.SafetyCondition{Factor: "f", MinValue: floatPtr(1)}, Context{"f": "lots"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := checkCondition(tc.cond, tc.ctx); got != tc.want {
				t.Fatalf("checkCondition = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWisdomForActionAggregates(t *testing.T) {
	e := newTestEvaluator(t)

	wisdom := e.WisdomForAction("restart_service")
	if wisdom.RulesCount != 2 {
		t.Fatalf("rules count = %d, want 2", wisdom.RulesCount)
	}
	if len(wisdom.WhatToCheckFirst) == 0 {
		t.Error("expected check-first guidance for restarts")
	}
	if len(wisdom.Rationale) == 0 {
		t.Error("expected rationale for restarts")
	}
}

func TestMatchesAnyService(t *testing.T) {
	tests := []struct {
		patterns []string
		service  string
		want     bool
	}{
		{[]string{"*"}, "anything", true},
		{[]string{"dev*"}, "dev-tools", true},
		{[]string{"dev*"}, "devops-portal", true},
		{[]string{"*-db"}, "orders-db", true},
		{[]string{"payment"}, "payment", true},
		{[]string{"payment"}, "payment-service", false},
		{[]string{}, "anything", false},
	}
	for _, tc := range tests {
		if got := matchesAnyService(tc.patterns, tc.service); got != tc.want {
			t.Errorf("matchesAnyService(%v, %q) = %v, want %v", tc.patterns, tc.service, got, tc.want)
		}
	}
}
