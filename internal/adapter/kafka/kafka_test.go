package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func testEvent() domain.ReasoningGenerated {
	return domain.ReasoningGenerated{
		ID:          "0b7e6f5e-7d1c-4a55-9a53-3f1c2e9d6a10",
		CacheKey:    "62a9c0b44bf9b424667d5c16dd1d5850e42fab20f8022c5dbb114f0b1d9420ac",
		Reasoning:   "Industrial activity around Tokyo Bay.",
		Metadata:    map[string]any{"severity": "high"},
		GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Persisted:   true,
	}
}

func TestSerializeToMessage(t *testing.T) {
	event := testEvent()

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte(event.CacheKey), msg.Key)
	assert.Contains(t, string(msg.Value), `"reasoning":"Industrial activity around Tokyo Bay."`)
	assert.Contains(t, string(msg.Value), `"persisted":true`)
	assert.Equal(t, event.GeneratedAt, msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("reasoning.generated"), msg.Headers[0].Value)
	assert.Equal(t, "event_id", msg.Headers[1].Key)
	assert.Equal(t, []byte(event.ID), msg.Headers[1].Value)
	assert.Equal(t, "generated_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[2].Value)
}

func TestWriter_Publish(t *testing.T) {
	rec := &recordingWriter{}
	w := &Writer{writer: rec, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Publish(context.Background(), testEvent()))
	require.Len(t, rec.msgs, 1)

	rec.err = errors.New("leader not available")
	err := w.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	require.NoError(t, w.Close())
	assert.True(t, rec.closed)
}
