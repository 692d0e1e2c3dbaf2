package models

// SignalType enumerates the kinds of monitoring events the engine ingests.
type SignalType string

const (
	SignalTypeMetric        SignalType = "metric"
	SignalTypeLog           SignalType = "log"
	SignalTypeAlert         SignalType = "alert"
	SignalTypeTrace         SignalType = "trace"
	SignalTypeDeployment    SignalType = "deployment"
	SignalTypeIncident      SignalType = "incident"
	SignalTypeHealthCheck   SignalType = "health_check"
	SignalTypeSecurityEvent SignalType = "security_event"
)

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities from worst (0) to least severe. Unknown
// severities rank after low so they never win a worst-case comparison.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// WorstSeverity returns the most severe value among the inputs, or low when
// the input is empty.
func WorstSeverity(severities []Severity) Severity {
	worst := SeverityLow
	rank := severityRank(worst)
	for _, s := range severities {
		if r := severityRank(s); r < rank {
			worst = s
			rank = r
		}
	}
	return worst
}

// Signal is one normalized observation from a monitoring tool. Signals are
// immutable once ingested. Timestamp is kept as the producer-supplied RFC3339
// string; unparseable values degrade to non-matching during correlation
// instead of failing ingestion.
type Signal struct {
	ID            string         `json:"id"`
	Type          SignalType     `json:"type"`
	Source        string         `json:"source"`
	Service       string         `json:"service"`
	Timestamp     string         `json:"timestamp"`
	Severity      Severity       `json:"severity"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// CorrelatedEvent is a cluster of signals judged related in time and
// similarity. Events are recomputed from scratch on every correlation run and
// carry no cross-run identity.
type CorrelatedEvent struct {
	EventID          string       `json:"event_id"`
	Signals          []Signal     `json:"signals"`
	ServicesAffected []string     `json:"services_affected"`
	PrimaryService   string       `json:"primary_service"`
	Severity         Severity     `json:"severity"`
	CorrelationScore float64      `json:"correlation_score"`
	FirstSignalAt    string       `json:"first_signal_at"`
	LastSignalAt     string       `json:"last_signal_at"`
	SignalTypes      []SignalType `json:"signal_types"`
	SignalSources    []string     `json:"signal_sources"`
}
