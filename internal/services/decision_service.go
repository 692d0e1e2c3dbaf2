package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/engine"
	"github.com/autopilotstack/autopilot-core/internal/metrics"
	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/store"
	"github.com/autopilotstack/autopilot-core/internal/utils"
)

// Store key layout. Signals are indexed by id with bounded per-service and
// global recency lists; decisions mirror the same shape.
const (
	signalKeyPrefix     = "signal:"
	signalsAllKey       = "signals:all"
	signalsServiceKey   = "signals:"
	decisionKeyPrefix   = "decision:"
	decisionsAllKey     = "decisions:all"
	decisionsServiceKey = "decisions:"
	lastDeploymentKey   = "last_deployment:"

	globalSignalCap    = 500
	serviceSignalCap   = 100
	globalDecisionCap  = 200
	serviceDecisionCap = 50

	decisionRecordTTL = 24 * time.Hour
	processBatchSize  = 100
)

// Execution rejections surfaced to callers as typed errors.
var (
	ErrDecisionNotFound = errors.New("decision not found")
	ErrApprovalRequired = errors.New("decision requires manual approval")
	ErrAlreadyExecuted  = errors.New("decision already executed")
	ErrDecisionExpired  = errors.New("decision expired")
)

// Executor performs the actual remediation for an approved decision. The
// core never retries; cancellation and timeout policy belong to the
// implementation.
type Executor interface {
	ExecuteAction(ctx context.Context, actionType, service string, params map[string]any) (models.ExecutionResult, error)
}

// DecisionService wires signal ingestion, correlation, decision synthesis,
// and execution together over the keyed store.
type DecisionService struct {
	logger      *slog.Logger
	stor        store.Provider
	correlator  *engine.Correlator
	synthesizer *engine.Synthesizer
	latencies   *utils.LatencyTracker
}

// NewDecisionService constructs the service facade.
func NewDecisionService(logger *slog.Logger, stor store.Provider, correlator *engine.Correlator, synthesizer *engine.Synthesizer) *DecisionService {
	if logger == nil {
		logger = slog.Default()
	}
	if correlator == nil {
		correlator = engine.NewCorrelator(0, 0)
	}
	if synthesizer == nil {
		synthesizer = engine.NewSynthesizer(0)
	}
	return &DecisionService{
		logger:      logger,
		stor:        stor,
		correlator:  correlator,
		synthesizer: synthesizer,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// IngestSignal stores an immutable signal and indexes it for correlation.
// Each call touches only keys scoped to the signal, so producers need no
// cross-coordination.
func (s *DecisionService) IngestSignal(ctx context.Context, signal models.Signal) error {
	if signal.ID == "" {
		return fmt.Errorf("signal id is required")
	}
	if signal.Service == "" {
		signal.Service = "unknown"
	}

	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	ttl := time.Duration(s.correlator.WindowSeconds*2) * time.Second
	if err := s.stor.Set(ctx, signalKeyPrefix+signal.ID, data, ttl); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}

	if err := s.stor.ListPush(ctx, signalsServiceKey+signal.Service, []byte(signal.ID)); err != nil {
		return fmt.Errorf("index signal by service: %w", err)
	}
	if err := s.stor.ListTrim(ctx, signalsServiceKey+signal.Service, 0, serviceSignalCap-1); err != nil {
		return fmt.Errorf("trim service signal index: %w", err)
	}

	if err := s.stor.ListPush(ctx, signalsAllKey, []byte(signal.ID)); err != nil {
		return fmt.Errorf("index signal globally: %w", err)
	}
	if err := s.stor.ListTrim(ctx, signalsAllKey, 0, globalSignalCap-1); err != nil {
		return fmt.Errorf("trim global signal index: %w", err)
	}

	// Deployment signals feed the safety evaluator's deployment-age factor.
	if signal.Type == models.SignalTypeDeployment {
		ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
		if err := s.stor.Set(ctx, lastDeploymentKey+signal.Service, []byte(ts), 0); err != nil {
			s.logger.Warn("failed to record deployment time", slog.String("service", signal.Service), slog.Any("error", err))
		}
	}

	metrics.ObserveSignalIngested(string(signal.Type))
	s.logger.Debug("signal ingested",
		slog.String("id", signal.ID),
		slog.String("type", string(signal.Type)),
		slog.String("source", signal.Source))
	return nil
}

// ProcessAndDecide snapshots the most recent signals, correlates them, and
// synthesizes decisions. The snapshot is taken at call start; signals written
// concurrently are picked up by the next run.
func (s *DecisionService) ProcessAndDecide(ctx context.Context) ([]models.UnifiedDecision, error) {
	start := time.Now()

	ids, err := s.stor.ListRange(ctx, signalsAllKey, 0, processBatchSize-1)
	if err != nil {
		return nil, fmt.Errorf("fetch signal index: %w", err)
	}

	signals := make([]models.Signal, 0, len(ids))
	for _, id := range ids {
		data, err := s.stor.Get(ctx, signalKeyPrefix+string(id))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // expired
			}
			return nil, fmt.Errorf("fetch signal %s: %w", id, err)
		}
		var signal models.Signal
		if err := json.Unmarshal(data, &signal); err != nil {
			s.logger.Warn("skipping malformed signal record", slog.String("id", string(id)), slog.Any("error", err))
			continue
		}
		signals = append(signals, signal)
	}

	if len(signals) == 0 {
		return nil, nil
	}

	events := s.correlator.Correlate(signals)

	var decisions []models.UnifiedDecision
	for _, event := range events {
		decision := s.synthesizer.Decide(event)
		if decision.DecisionType == models.DecisionNoAction {
			continue
		}
		if err := s.storeDecision(ctx, decision); err != nil {
			return decisions, err
		}
		metrics.ObserveDecision(string(decision.DecisionType))
		decisions = append(decisions, decision)
	}

	duration := time.Since(start)
	s.latencies.Observe(duration)
	metrics.ObserveCorrelationRun(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("decision run latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}

	s.logger.Info("decision run complete",
		slog.Int("signals", len(signals)),
		slog.Int("events", len(events)),
		slog.Int("decisions", len(decisions)))
	return decisions, nil
}

// ExecuteDecision dispatches an approved decision to the executor and records
// the outcome. It rejects approval-gated, already-executed, and expired
// decisions with typed errors and never invokes the executor for them.
func (s *DecisionService) ExecuteDecision(ctx context.Context, decisionID string, executor Executor) (models.ExecutionResult, error) {
	decision, err := s.Decision(ctx, decisionID)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	if decision.RequiresApproval && !decision.AutoExecutable {
		return models.ExecutionResult{}, fmt.Errorf("execute decision %s: %w", decisionID, ErrApprovalRequired)
	}
	if decision.ExecutedAt != nil {
		return models.ExecutionResult{}, fmt.Errorf("execute decision %s: %w", decisionID, ErrAlreadyExecuted)
	}
	if decision.Expired(time.Now().UTC()) {
		return models.ExecutionResult{}, fmt.Errorf("execute decision %s: %w", decisionID, ErrDecisionExpired)
	}
	if executor == nil {
		return models.ExecutionResult{}, fmt.Errorf("execute decision %s: no executor configured", decisionID)
	}

	service := "unknown"
	if len(decision.ServicesAffected) > 0 {
		service = decision.ServicesAffected[0]
	}

	result, err := executor.ExecuteAction(ctx, decision.PrimaryAction, service, decision.ActionParams)
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("executor failed for decision %s: %w", decisionID, err)
	}

	executedAt := time.Now().UTC()
	decision.ExecutedAt = &executedAt
	decision.ExecutionResult = &result

	data, err := json.Marshal(decision)
	if err != nil {
		return result, fmt.Errorf("marshal executed decision: %w", err)
	}
	if err := s.stor.Set(ctx, decisionKeyPrefix+decisionID, data, decisionRecordTTL); err != nil {
		return result, fmt.Errorf("record execution result: %w", err)
	}

	s.logger.Info("decision executed",
		slog.String("decision_id", decisionID),
		slog.String("action", decision.PrimaryAction),
		slog.String("service", service),
		slog.Bool("success", result.Success))
	return result, nil
}

// Decision loads a stored decision by id.
func (s *DecisionService) Decision(ctx context.Context, decisionID string) (*models.UnifiedDecision, error) {
	data, err := s.stor.Get(ctx, decisionKeyPrefix+decisionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("decision %s: %w", decisionID, ErrDecisionNotFound)
		}
		return nil, fmt.Errorf("fetch decision %s: %w", decisionID, err)
	}
	var decision models.UnifiedDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, fmt.Errorf("decode decision %s: %w", decisionID, err)
	}
	return &decision, nil
}

// PendingDecisions returns stored decisions awaiting approval.
func (s *DecisionService) PendingDecisions(ctx context.Context) ([]models.UnifiedDecision, error) {
	records, err := s.stor.ListRange(ctx, decisionsAllKey, 0, serviceDecisionCap-1)
	if err != nil {
		return nil, fmt.Errorf("fetch decision index: %w", err)
	}

	var pending []models.UnifiedDecision
	for _, record := range records {
		var decision models.UnifiedDecision
		if err := json.Unmarshal(record, &decision); err != nil {
			continue
		}
		if decision.RequiresApproval && decision.ExecutedAt == nil {
			pending = append(pending, decision)
		}
	}
	return pending, nil
}

// Stats summarises throughput for the query surface.
func (s *DecisionService) Stats(ctx context.Context) (models.DecisionStats, error) {
	stats := models.DecisionStats{
		DecisionsByType:     make(map[models.DecisionType]int),
		CorrelationWindow:   s.correlator.WindowSeconds,
		MinCorrelationScore: s.correlator.MinScore,
	}

	signalCount, err := s.stor.ListLen(ctx, signalsAllKey)
	if err != nil {
		return stats, fmt.Errorf("count signals: %w", err)
	}
	stats.SignalsProcessed = signalCount

	records, err := s.stor.ListRange(ctx, decisionsAllKey, 0, globalDecisionCap-1)
	if err != nil {
		return stats, fmt.Errorf("fetch decision index: %w", err)
	}
	stats.TotalDecisions = len(records)

	for _, record := range records {
		var decision models.UnifiedDecision
		if err := json.Unmarshal(record, &decision); err != nil {
			continue
		}
		stats.DecisionsByType[decision.DecisionType]++
		if decision.ExecutedAt != nil {
			stats.ExecutedDecisions++
		} else if decision.RequiresApproval {
			stats.PendingApproval++
		}
	}
	return stats, nil
}

func (s *DecisionService) storeDecision(ctx context.Context, decision models.UnifiedDecision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	if err := s.stor.Set(ctx, decisionKeyPrefix+decision.DecisionID, data, decisionRecordTTL); err != nil {
		return fmt.Errorf("store decision: %w", err)
	}

	if err := s.stor.ListPush(ctx, decisionsAllKey, data); err != nil {
		return fmt.Errorf("index decision globally: %w", err)
	}
	if err := s.stor.ListTrim(ctx, decisionsAllKey, 0, globalDecisionCap-1); err != nil {
		return fmt.Errorf("trim global decision index: %w", err)
	}

	for _, service := range decision.ServicesAffected {
		if err := s.stor.ListPush(ctx, decisionsServiceKey+service, data); err != nil {
			return fmt.Errorf("index decision for %s: %w", service, err)
		}
		if err := s.stor.ListTrim(ctx, decisionsServiceKey+service, 0, serviceDecisionCap-1); err != nil {
			return fmt.Errorf("trim decision index for %s: %w", service, err)
		}
	}
	return nil
}
