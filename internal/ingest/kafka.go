package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/autopilotstack/autopilot-core/internal/models"
	"github.com/autopilotstack/autopilot-core/internal/utils"
)

// KafkaConfig configures the streaming signal consumer.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupID"`
}

// KafkaConsumer reads JSON signal envelopes from a topic and feeds them to
// the sink. Producers that cannot call the HTTP surface publish here instead.
type KafkaConsumer struct {
	reader *kafka.Reader
	sink   Sink
	logger *slog.Logger
}

// NewKafkaConsumer constructs a consumer; Run must be called to start it.
func NewKafkaConsumer(cfg KafkaConfig, sink Sink, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "autopilot-core-signals"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	return &KafkaConsumer{reader: reader, sink: sink, logger: logger}, nil
}

// Run consumes until the context is cancelled. Malformed messages are logged
// and skipped; ingestion errors are logged and the loop continues so one bad
// store write does not stall the stream.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	c.logger.Info("kafka signal consumer started", slog.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return utils.NewAppError("ingest.kafka", "read signal message", err)
		}

		var signal models.Signal
		if err := json.Unmarshal(msg.Value, &signal); err != nil {
			c.logger.Warn("skipping malformed signal message",
				slog.String("key", string(msg.Key)),
				slog.Any("error", err))
			continue
		}
		normalizeSignal(&signal)

		if err := c.sink.IngestSignal(ctx, signal); err != nil {
			c.logger.Error("signal ingestion failed",
				slog.String("id", signal.ID),
				slog.Any("error", err))
		}
	}
}

func normalizeSignal(signal *models.Signal) {
	if signal.ID == "" {
		signal.ID = "sig_" + uuid.NewString()[:12]
	}
	if signal.Type == "" {
		signal.Type = models.SignalTypeAlert
	}
	if signal.Source == "" {
		signal.Source = SourceInternal
	}
	if signal.Service == "" {
		signal.Service = "unknown"
	}
	if signal.Timestamp == "" {
		signal.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if signal.Severity == "" {
		signal.Severity = models.SeverityMedium
	}
	if signal.Message == "" {
		signal.Message = "Signal received"
	}
}
