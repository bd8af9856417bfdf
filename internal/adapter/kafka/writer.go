package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// StateKey is the message key of every published snapshot. A single key keeps
// all snapshots on one partition, in order, and lets a compacted topic retain
// only the latest.
const StateKey = "geostate"

// Writer publishes GeoState snapshots to a Kafka topic.
// It implements pipeline.SnapshotLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured state topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaStateTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the writer in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadSnapshot publishes one snapshot.
func (w *Writer) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", snap.ID, err)
	}
	w.logger.Debug("snapshot published", "snapshot_id", snap.ID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage encodes a snapshot into a Kafka message.
func serializeToMessage(snap domain.Snapshot) (kafkago.Message, error) {
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   []byte(StateKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(snap.ID)},
			{Key: "saved_at", Value: []byte(snap.SavedAt.Format(time.RFC3339))},
			{Key: "version", Value: []byte(strconv.Itoa(snap.Version))},
		},
	}, nil
}
