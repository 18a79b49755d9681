package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestEmitPublishesKeyedJSON(t *testing.T) {
	fw := &fakeWriter{}
	sink := NewWithWriter(fw)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.Emit(context.Background(), tokenguard.AuditEvent{
		Timestamp: ts,
		EventType: "TOKEN_REUSE_DETECTED",
		UserID:    "u-1",
		SessionID: "s-1",
		Error:     "token_reuse_detected",
		Metadata:  map[string]string{"reason": "session_revoked"},
	})

	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	msg := fw.msgs[0]
	if string(msg.Key) != "u-1" {
		t.Fatalf("expected user id key, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "TOKEN_REUSE_DETECTED" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	if !msg.Time.Equal(ts) {
		t.Fatalf("message time %v, want %v", msg.Time, ts)
	}

	var decoded tokenguard.AuditEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.EventType != "TOKEN_REUSE_DETECTED" || decoded.Metadata["reason"] != "session_revoked" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if !fw.deadline {
		t.Fatal("publish must be bounded by the write timeout")
	}
}

func TestEmitFailureIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	fw := &fakeWriter{err: errors.New("broker down")}
	sink := NewWithWriter(fw, WithLogger(zap.New(core)), WithWriteTimeout(0))

	sink.Emit(context.Background(), tokenguard.AuditEvent{EventType: "LOGIN", UserID: "u-1"})

	if sink.Failed() != 1 {
		t.Fatalf("expected 1 failure, got %d", sink.Failed())
	}
	if logs.FilterMessage("publish audit event").Len() != 1 {
		t.Fatal("expected failure log entry")
	}
	if fw.deadline {
		t.Fatal("zero write timeout must not set a deadline")
	}
}

func TestEmitSurvivesCanceledContext(t *testing.T) {
	fw := &fakeWriter{}
	sink := NewWithWriter(fw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, tokenguard.AuditEvent{EventType: "LOGOUT", UserID: "u-1"})

	if len(fw.msgs) != 1 {
		t.Fatal("request cancellation must not drop audit events")
	}
}

func TestSinkPlugsIntoEngine(t *testing.T) {
	var _ tokenguard.AuditSink = (*Sink)(nil)

	fw := &fakeWriter{}
	if err := NewWithWriter(fw).Close(); err != nil || !fw.closed {
		t.Fatalf("Close must close the writer: %v", err)
	}
}
