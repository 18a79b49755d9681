// Package kafkasink publishes tokenguard audit events to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the subset of kafka.Writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink is a [tokenguard.AuditSink] that writes one JSON message per event,
// keyed by user id so a user's events stay ordered within a partition.
//
// Emit is called from the audit dispatcher goroutine, never from a request
// path, so a slow broker only fills the dispatcher buffer.
type Sink struct {
	writer       Writer
	logger       *zap.Logger
	writeTimeout time.Duration
	failed       atomic.Uint64
}

// Option configures a [Sink].
type Option func(*Sink)

// WithLogger sets the logger for write failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWriteTimeout bounds each publish. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.writeTimeout = d
	}
}

// New creates a Sink writing to topic on the given brokers.
func New(brokers []string, topic string, opts ...Option) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewWithWriter(w, opts...)
}

// NewWithWriter allows injecting a writer.
func NewWithWriter(w Writer, opts ...Option) *Sink {
	s := &Sink{
		writer:       w,
		logger:       zap.NewNop(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit implements [tokenguard.AuditSink]. Failures are logged and counted.
func (s *Sink) Emit(ctx context.Context, event tokenguard.AuditEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.fail("marshal audit event", event, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	ctx = context.WithoutCancel(ctx)
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.fail("publish audit event", event, err)
	}
}

// Failed returns the number of events that could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}

func (s *Sink) fail(msg string, event tokenguard.AuditEvent, err error) {
	s.failed.Add(1)
	s.logger.Error(msg,
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID),
		zap.Error(err),
	)
}
