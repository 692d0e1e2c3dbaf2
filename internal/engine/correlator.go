package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/utils"
)

// Default correlation tuning. Signals further apart than the window are never
// clustered; pairs scoring below the threshold stay separate.
const (
	DefaultCorrelationWindowSeconds = 300
	DefaultMinCorrelationScore      = 0.6
)

// Correlator groups buffered signals into correlated events by temporal
// proximity and similarity. It holds no state beyond its tuning and is safe
// for concurrent use.
type Correlator struct {
	WindowSeconds int
	MinScore      float64
}

// NewCorrelator returns a Correlator with the supplied tuning; non-positive
// values fall back to the defaults.
func NewCorrelator(windowSeconds int, minScore float64) *Correlator {
	if windowSeconds <= 0 {
		windowSeconds = DefaultCorrelationWindowSeconds
	}
	if minScore <= 0 {
		minScore = DefaultMinCorrelationScore
	}
	return &Correlator{WindowSeconds: windowSeconds, MinScore: minScore}
}

// Correlate partitions signals into correlated events. Clustering is greedy
// and not transitively closed: signals are sorted by timestamp, each seed in
// order claims every later unclaimed signal within the window whose pairwise
// score clears the threshold, and every signal belongs to exactly one event.
func (c *Correlator) Correlate(signals []models.Signal) []models.CorrelatedEvent {
	if len(signals) == 0 {
		return nil
	}

	sorted := append([]models.Signal(nil), signals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	claimed := make(map[string]struct{}, len(sorted))
	var events []models.CorrelatedEvent

	for i, seed := range sorted {
		if _, ok := claimed[seed.ID]; ok {
			continue
		}

		members := []models.Signal{seed}
		claimed[seed.ID] = struct{}{}

		seedTime, seedTimeOK := parseSignalTime(seed.Timestamp)

		for _, candidate := range sorted[i+1:] {
			if _, ok := claimed[candidate.ID]; ok {
				continue
			}
			if !seedTimeOK {
				continue
			}
			candidateTime, ok := parseSignalTime(candidate.Timestamp)
			if !ok {
				continue
			}
			diff := candidateTime.Sub(seedTime)
			if diff < 0 {
				diff = -diff
			}
			if diff > time.Duration(c.WindowSeconds)*time.Second {
				continue
			}
			if PairScore(seed, candidate) >= c.MinScore {
				members = append(members, candidate)
				claimed[candidate.ID] = struct{}{}
			}
		}

		events = append(events, buildEvent(seed, members, len(sorted)))
	}

	return events
}

// PairScore computes the additive similarity between two signals, capped at 1.
func PairScore(a, b models.Signal) float64 {
	score := 0.0

	if a.Service == b.Service {
		score += 0.4
	}
	if a.Source == b.Source {
		score += 0.2
	}

	types := map[models.SignalType]struct{}{a.Type: {}, b.Type: {}}
	if hasType(types, models.SignalTypeDeployment) && hasType(types, models.SignalTypeAlert) {
		score += 0.3
	}
	if hasType(types, models.SignalTypeMetric) && hasType(types, models.SignalTypeLog) {
		score += 0.2
	}

	if a.Severity == b.Severity {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

func buildEvent(seed models.Signal, members []models.Signal, poolSize int) models.CorrelatedEvent {
	services := make([]string, 0, len(members))
	severities := make([]models.Severity, 0, len(members))
	types := make([]models.SignalType, 0, len(members))
	sources := make([]string, 0, len(members))

	seenService := make(map[string]struct{})
	seenType := make(map[models.SignalType]struct{})
	seenSource := make(map[string]struct{})

	for _, s := range members {
		severities = append(severities, s.Severity)
		if _, ok := seenService[s.Service]; !ok && s.Service != "" {
			seenService[s.Service] = struct{}{}
			services = append(services, s.Service)
		}
		if _, ok := seenType[s.Type]; !ok {
			seenType[s.Type] = struct{}{}
			types = append(types, s.Type)
		}
		if _, ok := seenSource[s.Source]; !ok && s.Source != "" {
			seenSource[s.Source] = struct{}{}
			sources = append(sources, s.Source)
		}
	}

	score := 0.0
	if poolSize > 0 {
		score = float64(len(members)) / float64(poolSize)
	}

	return models.CorrelatedEvent{
		EventID:          fmt.Sprintf("event_%s", uuid.NewString()[:12]),
		Signals:          members,
		ServicesAffected: services,
		PrimaryService:   seed.Service,
		Severity:         models.WorstSeverity(severities),
		CorrelationScore: score,
		FirstSignalAt:    members[0].Timestamp,
		LastSignalAt:     members[len(members)-1].Timestamp,
		SignalTypes:      types,
		SignalSources:    sources,
	}
}

func hasType(set map[models.SignalType]struct{}, t models.SignalType) bool {
	_, ok := set[t]
	return ok
}

func parseSignalTime(value string) (time.Time, bool) {
	t, err := utils.ParseRFC3339(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
