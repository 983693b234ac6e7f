package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/config"
	"github.com/couchcryptid/geoderive/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() domain.DerivedEvent {
	return domain.DerivedEvent{
		RunID:     "run-1",
		Source:    "/data/bou20150317.d",
		Key:       "E",
		Station:   "BOU",
		Models:    []string{"Rocky_Mountains", "USArray.COR21.2016"},
		Samples:   1440,
		DerivedAt: time.Date(2015, 3, 18, 1, 2, 3, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	event := sampleEvent()

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("/data/bou20150317.d/E"), msg.Key)
	assert.Contains(t, string(msg.Value), `"models":["Rocky_Mountains","USArray.COR21.2016"]`)
	assert.Contains(t, string(msg.Value), `"samples":1440`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "derived_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2015-03-18T01:02:03Z"), msg.Headers[1].Value)
}

// --- mocks ---

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *recordingWriter) Close() error {
	m.closed = true
	return nil
}

func TestWriter_Notify(t *testing.T) {
	rec := &recordingWriter{}
	w := &Writer{writer: rec, logger: discardLogger()}

	require.NoError(t, w.Notify(context.Background(), sampleEvent()))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, []byte("/data/bou20150317.d/E"), rec.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, rec.closed)
}

func TestWriter_NotifyError(t *testing.T) {
	w := &Writer{writer: &recordingWriter{err: errors.New("broker down")}, logger: discardLogger()}
	err := w.Notify(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "broker down")
}

func TestNewWriter_UsesConfig(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"b1:9092"}, KafkaTopic: "derived"}, discardLogger())
	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "derived", kw.Topic)
	assert.Equal(t, "b1:9092", kw.Addr.String())
}
