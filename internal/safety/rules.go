package safety

import (
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

// defaultServiceTiers maps service-name substrings to criticality tiers
// (1 = most critical). The first matching pattern wins; unmatched services
// default to tier 2.
func defaultServiceTiers() []tierPattern {
	return []tierPattern{
		// Tier 1 - direct revenue/user impact.
		{"payment", 1}, {"checkout", 1}, {"auth", 1}, {"api-gateway", 1},
		{"database-primary", 1}, {"user-auth", 1},

		// Tier 2 - core functionality.
		{"order", 2}, {"inventory", 2}, {"user-service", 2}, {"cart", 2},
		{"redis-cluster", 2}, {"kafka-brokers", 2},

		// Tier 3 - supporting services.
		{"notification", 3}, {"email", 3}, {"search", 3}, {"recommendation", 3},
		{"analytics", 3}, {"logging", 3},

		// Tier 4 - non-production.
		{"dev", 4}, {"staging", 4}, {"test", 4}, {"internal-tools", 4},
	}
}

type tierPattern struct {
	pattern string
	tier    int
}

// DefaultRules returns the built-in safety rule set loaded at startup.
func DefaultRules() []models.SafetyRule {
	reviewed := time.Now().UTC().Format(time.RFC3339)

	return []models.SafetyRule{
		{
			ID:              "restart_tier4_always",
			Name:            "Restart Tier-4 Services",
			Description:     "Tier-4 services can always be safely restarted",
			ActionTypes:     []string{"restart_service", "rollout_restart"},
			Services:        []string{"dev*", "staging*", "test*", "internal-*"},
			SafetyLevel:     models.SafetyAlwaysSafe,
			MaxConcurrent:   5,
			CooldownSeconds: 60,
			MaxPerHour:      10,
			Rationale:       "Non-production and internal tools have no user impact",
			CreatedBy:       "system",
			ApprovedBy:      "system",
			LastReviewed:    reviewed,
		},
		{
			ID:          "restart_offpeak_safe",
			Name:        "Restart During Off-Peak",
			Description: "Restarts are safe during off-peak hours with healthy dependencies",
			ActionTypes: []string{"restart_service", "rollout_restart"},
			// Production services only; tier-4 restarts are covered by the
			// unconditional rule above.
			Services: []string{
				"payment*", "checkout*", "auth*", "api-gateway*", "database-*",
				"order*", "inventory*", "user-*", "cart*", "redis-*", "kafka-*",
				"notification*", "email*", "search*", "recommendation*",
				"analytics*", "logging*",
			},
			SafetyLevel: models.SafetyConditionallySafe,
			SafeConditions: []models.SafetyCondition{
				{Factor: "time_of_day", Value: "off_peak"},
				{Factor: "dependencies_healthy", Value: true},
				{Factor: "no_active_incidents", Value: true},
			},
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "service_tier", Value: 1},
				{Factor: "active_deployment", Value: true},
			},
			MaxConcurrent:   2,
			CooldownSeconds: 300,
			MaxPerHour:      4,
			Rationale:       "Off-peak hours minimize user impact, healthy deps ensure quick recovery",
			CommonMistakes: []string{
				"Restarting during deployment window",
				"Restarting when dependencies are unhealthy",
			},
			WhatToCheckFirst: []string{
				"Check if any deployments in progress",
				"Verify dependency health",
				"Check current error rate",
			},
			WhenToEscalate: []string{
				"Service doesn't come back within 5 minutes",
				"Error rate increases after restart",
				"Multiple pods fail to start",
			},
			CreatedBy:    "senior_sre",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:          "scale_up_always_safe",
			Name:        "Scale Up is Generally Safe",
			Description: "Scaling up adds capacity and rarely causes issues",
			ActionTypes: []string{"scale_up"},
			Services:    []string{"*"},
			SafetyLevel: models.SafetyConditionallySafe,
			SafeConditions: []models.SafetyCondition{
				{Factor: "scale_factor", MaxValue: floatPtr(2)},
				{Factor: "target_replicas", MaxValue: floatPtr(20)},
			},
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "scale_factor", MinValue: floatPtr(3)},
				{Factor: "cost_impact", Value: "high"},
			},
			MaxConcurrent:   3,
			CooldownSeconds: 120,
			MaxPerHour:      6,
			Rationale:       "Scaling up is additive - worst case is cost, not outage",
			CommonMistakes: []string{
				"Scaling up without checking if problem is actually load",
				"Scaling up during database connection exhaustion (makes it worse)",
			},
			WhatToCheckFirst: []string{
				"Is this actually a load issue?",
				"Are pods healthy after scaling?",
				"Are there enough resources in cluster?",
			},
			WhenToEscalate: []string{
				"New pods crash immediately",
				"Scaling doesn't improve metrics",
				"Database connections become exhausted",
			},
			CreatedBy:    "senior_sre",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:          "scale_down_dangerous",
			Name:        "Scale Down During Incident",
			Description: "Never scale down during an active incident",
			ActionTypes: []string{"scale_down"},
			Services:    []string{"*"},
			SafetyLevel: models.SafetyDangerous,
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "active_incident", Value: true},
			},
			MaxConcurrent:   1,
			CooldownSeconds: 600,
			MaxPerHour:      2,
			Rationale:       "Scaling down removes capacity when you might need it",
			CommonMistakes: []string{
				"Scaling down because metrics 'look ok' during incident",
				"Scaling down right after incident without buffer",
			},
			WhatToCheckFirst: []string{
				"Confirm no active incidents",
				"Check if load is genuinely low",
				"Verify this won't impact upcoming traffic",
			},
			WhenToEscalate: []string{
				"Any sign of service degradation after scale-down",
			},
			CreatedBy:    "senior_sre",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:          "rollback_recent_deploy",
			Name:        "Rollback Recent Deployment",
			Description: "Rollback is safe if deployment was within 15 minutes",
			ActionTypes: []string{"rollback", "rollback_deployment"},
			Services:    []string{"*"},
			SafetyLevel: models.SafetyConditionallySafe,
			SafeConditions: []models.SafetyCondition{
				{Factor: "deployment_age_minutes", MaxValue: floatPtr(15)},
				{Factor: "previous_version_healthy", Value: true},
			},
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "deployment_age_minutes", MinValue: floatPtr(60)},
				{Factor: "database_migration", Value: true},
				{Factor: "data_format_change", Value: true},
			},
			MaxConcurrent:   1,
			CooldownSeconds: 300,
			MaxPerHour:      3,
			Rationale:       "Recent deployments have low data divergence, rollback is usually safe",
			CommonMistakes: []string{
				"Rolling back after database migration",
				"Rolling back when previous version has known issues",
				"Rolling back without checking what changed",
			},
			WhatToCheckFirst: []string{
				"Was there a database migration?",
				"Is the previous version still safe?",
				"How long has current version been running?",
			},
			WhenToEscalate: []string{
				"Deployment included database changes",
				"Previous version has known vulnerabilities",
				"Rollback fails or causes errors",
			},
			CreatedBy:    "senior_sre",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:          "clear_cache_safe",
			Name:        "Clear Cache is Safe with Warming",
			Description: "Cache clearing is safe if cache can be warmed or is non-critical",
			ActionTypes: []string{"clear_cache", "flush_cache"},
			Services:    []string{"*"},
			SafetyLevel: models.SafetyConditionallySafe,
			SafeConditions: []models.SafetyCondition{
				{Factor: "cache_warming_enabled", Value: true},
				{Factor: "off_peak", Value: true},
			},
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "service_tier", Value: 1},
				{Factor: "peak_hours", Value: true},
			},
			MaxConcurrent:   1,
			CooldownSeconds: 600,
			MaxPerHour:      2,
			Rationale:       "Cache clearing can cause load spike on backend",
			CommonMistakes: []string{
				"Clearing cache during peak traffic",
				"Clearing cache without warming strategy",
			},
			WhatToCheckFirst: []string{
				"Is there a cache warming process?",
				"What's the current traffic level?",
				"Can backend handle the load?",
			},
			WhenToEscalate: []string{
				"Database load spikes after cache clear",
				"Response times don't recover within 10 mins",
			},
			CreatedBy:    "senior_sre",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:          "kill_idle_connections_safe",
			Name:        "Kill Idle Database Connections",
			Description: "Killing idle connections is safe for long-idle connections",
			ActionTypes: []string{"kill_connections", "terminate_connections"},
			Services:    []string{"database-*", "postgresql-*", "mysql-*"},
			SafetyLevel: models.SafetyConditionallySafe,
			SafeConditions: []models.SafetyCondition{
				{Factor: "connection_idle_seconds", MinValue: floatPtr(300)},
			},
			UnsafeConditions: []models.SafetyCondition{
				{Factor: "connection_idle_seconds", MaxValue: floatPtr(60)},
			},
			MaxConcurrent:   1,
			CooldownSeconds: 120,
			MaxPerHour:      4,
			Rationale:       "Long-idle connections are likely leaked, killing them is safe",
			CommonMistakes: []string{
				"Killing active connections",
				"Killing connections during batch job window",
			},
			WhatToCheckFirst: []string{
				"Are these genuinely idle connections?",
				"Are any batch jobs running?",
			},
			WhenToEscalate: []string{
				"Connection pool becomes fully depleted",
				"Services start failing to connect",
			},
			CreatedBy:    "senior_dba",
			ApprovedBy:   "platform_lead",
			LastReviewed: reviewed,
		},
		{
			ID:              "database_failover_forbidden",
			Name:            "Database Failover",
			Description:     "Database failover must never be automated without human approval",
			ActionTypes:     []string{"database_failover", "rds_failover", "db_promote"},
			Services:        []string{"*"},
			SafetyLevel:     models.SafetyForbidden,
			MaxConcurrent:   1,
			CooldownSeconds: 3600,
			MaxPerHour:      1,
			Rationale:       "Database failover can cause data loss if not done carefully",
			CommonMistakes: []string{
				"Triggering failover without checking replication lag",
				"Failover during high write load",
			},
			WhatToCheckFirst: []string{
				"What is the replication lag?",
				"Are there any long-running transactions?",
				"Is the standby truly in sync?",
			},
			WhenToEscalate: []string{"Always - this should never be automated"},
			CreatedBy:      "senior_dba",
			ApprovedBy:     "cto",
			LastReviewed:   reviewed,
		},
		{
			ID:              "data_deletion_forbidden",
			Name:            "Data Deletion",
			Description:     "Any action that deletes data is forbidden without approval",
			ActionTypes:     []string{"delete_data", "truncate_table", "drop_*"},
			Services:        []string{"*"},
			SafetyLevel:     models.SafetyForbidden,
			MaxConcurrent:   0,
			CooldownSeconds: 86400,
			MaxPerHour:      0,
			Rationale:       "Data deletion is irreversible",
			CommonMistakes:  []string{"Deleting production data"},
			WhatToCheckFirst: []string{
				"Do NOT proceed without explicit approval",
			},
			WhenToEscalate: []string{"Always - never auto-execute"},
			CreatedBy:      "senior_sre",
			ApprovedBy:     "cto",
			LastReviewed:   reviewed,
		},
	}
}
