package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

// Well-known signal sources.
const (
	SourcePrometheus = "prometheus"
	SourceDatadog    = "datadog"
	SourceKubernetes = "kubernetes"
	SourceArgoCD     = "argocd"
	SourceInternal   = "internal"
)

// Sink receives normalized signals; the decision service implements it.
type Sink interface {
	IngestSignal(ctx context.Context, signal models.Signal) error
}

// FromPrometheusAlerts converts Prometheus alertmanager payloads into signals
// and feeds them to the sink.
func FromPrometheusAlerts(ctx context.Context, sink Sink, alerts []map[string]any) ([]models.Signal, error) {
	signals := make([]models.Signal, 0, len(alerts))
	for _, alert := range alerts {
		labels, _ := alert["labels"].(map[string]any)
		annotations, _ := alert["annotations"].(map[string]any)

		signal := models.Signal{
			ID:        "prom_" + contentHash(alert),
			Type:      models.SignalTypeAlert,
			Source:    SourcePrometheus,
			Service:   stringField(labels, "service", "unknown"),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Severity:  models.Severity(stringField(labels, "severity", string(models.SeverityMedium))),
			Message:   stringField(annotations, "summary", "Prometheus alert"),
			Data:      alert,
		}
		if err := sink.IngestSignal(ctx, signal); err != nil {
			return signals, fmt.Errorf("ingest prometheus alert: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, nil
}

// FromKubernetesEvents converts Kubernetes core events into health-check
// signals. OOM kills, crash loops, and evictions map to critical severity.
func FromKubernetesEvents(ctx context.Context, sink Sink, events []map[string]any) ([]models.Signal, error) {
	signals := make([]models.Signal, 0, len(events))
	for _, event := range events {
		severity := models.SeverityLow
		if t, _ := event["type"].(string); t != "" && t != "Normal" {
			severity = models.SeverityHigh
		}
		reason, _ := event["reason"].(string)
		switch reason {
		case "OOMKilled", "CrashLoopBackOff", "Evicted":
			severity = models.SeverityCritical
		}

		metadata, _ := event["metadata"].(map[string]any)
		involved, _ := event["involvedObject"].(map[string]any)

		id := stringField(metadata, "uid", "")
		if id == "" {
			id = contentHash(event)
		}

		message, _ := event["message"].(string)
		timestamp, _ := event["lastTimestamp"].(string)
		if timestamp == "" {
			timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		signal := models.Signal{
			ID:        "k8s_" + id,
			Type:      models.SignalTypeHealthCheck,
			Source:    SourceKubernetes,
			Service:   stringField(involved, "name", "unknown"),
			Timestamp: timestamp,
			Severity:  severity,
			Message:   fmt.Sprintf("%s: %s", orDefault(reason, "Event"), message),
			Data:      event,
		}
		if err := sink.IngestSignal(ctx, signal); err != nil {
			return signals, fmt.Errorf("ingest kubernetes event: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, nil
}

// IngestDeployment records a deployment notification as a signal so the
// correlator can tie subsequent alerts back to the rollout.
func IngestDeployment(ctx context.Context, sink Sink, service, version, deployer, status string) (models.Signal, error) {
	if status == "" {
		status = "started"
	}
	now := time.Now().UTC()
	signal := models.Signal{
		ID:        fmt.Sprintf("deploy_%s_%d", service, now.Unix()),
		Type:      models.SignalTypeDeployment,
		Source:    SourceArgoCD,
		Service:   service,
		Timestamp: now.Format(time.RFC3339),
		Severity:  models.SeverityMedium,
		Message:   fmt.Sprintf("Deployment %s: %s -> %s", status, service, version),
		Data: map[string]any{
			"version":  version,
			"deployer": deployer,
			"status":   status,
		},
	}
	if err := sink.IngestSignal(ctx, signal); err != nil {
		return signal, fmt.Errorf("ingest deployment: %w", err)
	}
	return signal, nil
}

func contentHash(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprint(payload))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

func stringField(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
