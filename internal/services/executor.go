package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

// DryRunExecutor logs what would happen instead of touching infrastructure.
// It is the default wiring until a real remediation executor is attached.
type DryRunExecutor struct {
	logger *slog.Logger
}

// NewDryRunExecutor constructs a DryRunExecutor.
func NewDryRunExecutor(logger *slog.Logger) *DryRunExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunExecutor{logger: logger}
}

// ExecuteAction reports success without performing any change.
func (e *DryRunExecutor) ExecuteAction(_ context.Context, actionType, service string, params map[string]any) (models.ExecutionResult, error) {
	e.logger.Info("dry-run execution",
		slog.String("action", actionType),
		slog.String("service", service),
		slog.Any("params", params))
	return models.ExecutionResult{
		Success: true,
		Message: fmt.Sprintf("dry run: would execute %s on %s", actionType, service),
		Details: map[string]any{"dry_run": true},
	}, nil
}
