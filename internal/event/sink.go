package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

func count(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EventsEmittedTotal.WithLabelValues(sink, result).Inc()
}

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by type.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Emit(ctx context.Context, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Type),
		Value: payload,
		Time:  e.CreatedAt,
	})
	count("kafka", err)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", e.Type, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// DBSink stores events in the events table.
type DBSink struct {
	db store.Querier
}

func NewDBSink(db store.Querier) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Emit(ctx context.Context, e model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (id, type, severity, message, context, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Type, e.Severity, e.Message, e.Context, e.CreatedAt)
	count("db", err)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.Type, err)
	}
	return nil
}

// LogSink writes events to the log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

func (s *LogSink) Emit(_ context.Context, e model.Event) error {
	level := zerolog.InfoLevel
	switch e.Severity {
	case model.SeverityDebug:
		level = zerolog.DebugLevel
	case model.SeverityWarning:
		level = zerolog.WarnLevel
	case model.SeverityError, model.SeverityCritical:
		level = zerolog.ErrorLevel
	}
	ev := s.logger.WithLevel(level).Str("event_type", e.Type).Str("event_id", e.ID)
	for k, v := range e.Context {
		ev = ev.Str(k, v)
	}
	ev.Msg(e.Message)
	count("log", nil)
	return nil
}

// Multi fans an event out to every sink. All sinks are tried.
type Multi struct {
	sinks  []Sink
	logger zerolog.Logger
}

func NewMulti(logger zerolog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger.With().Str("component", "events").Logger()}
}

func (m *Multi) Emit(ctx context.Context, e model.Event) error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, e); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		m.logger.Warn().Err(err).Str("event_type", e.Type).Msg("event delivery failed")
		return err
	}
	return nil
}
