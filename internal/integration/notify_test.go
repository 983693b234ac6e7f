//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/adapter/kafka"
	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/config"
	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
	"github.com/couchcryptid/geoderive/internal/pipeline"
)

const testTopic = "test-derived-records"

// notification holds a deserialized message read from the topic.
type notification struct {
	Event   domain.DerivedEvent
	Key     string
	Headers map[string]string
}

func readNotification(ctx context.Context, t *testing.T, consumer *kafkago.Reader) notification {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from notification topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.DerivedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal notification")
	return notification{Event: event, Key: string(msg.Key), Headers: headers}
}

// staticSelector selects a fixed set of region models.
type staticSelector struct{ models []domain.ModelRef }

func (s staticSelector) Select(context.Context, domain.Header, domain.SelectRequest) (domain.Selection, error) {
	return domain.Selection{Models: s.models}, nil
}

type identityEvaluator struct{}

func (identityEvaluator) ApplyRegion(_ context.Context, bx, by []float64, _ time.Duration, _ string) ([]float64, []float64, error) {
	return by, bx, nil
}

func writeSource(t *testing.T, st *store.Store, dir string, n int) {
	t.Helper()
	index := make([]time.Time, n)
	bx := make([]float64, n)
	for i := range index {
		index[i] = time.Date(2024, time.May, 10, 0, 0, i, 0, time.UTC)
		bx[i] = float64(i)
	}
	rec := domain.NewRecord(index)
	require.NoError(t, rec.Set(domain.ColumnBx, bx))
	require.NoError(t, rec.Set(domain.ColumnBy, bx))
	require.NoError(t, st.Write(context.Background(), dir, rec, "B", domain.Header{Station: "FRD"}))
}

// TestKafkaWriter verifies the notifier publishes a keyed event with headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	derivedAt := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writer.Notify(ctx, domain.DerivedEvent{
		RunID:     "run-1",
		Source:    "bundle-1",
		Key:       "E",
		Models:    []string{"CP1"},
		Samples:   10,
		DerivedAt: derivedAt,
	}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	n := readNotification(ctx, t, consumer)
	assert.Equal(t, "bundle-1/E", n.Key)
	assert.Equal(t, "run-1", n.Headers["run_id"])
	assert.Equal(t, derivedAt.Format(time.RFC3339), n.Headers["derived_at"])
	assert.Equal(t, []string{"CP1"}, n.Event.Models)
	assert.Equal(t, 10, n.Event.Samples)
}

// TestPipelineEndToEnd derives records from Parquet bundles on disk and
// checks that one notification per bundle reaches Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	st := store.New(discardLogger())
	root := t.TempDir()
	bundles := []string{root + "/a", root + "/b", root + "/c"}
	for _, b := range bundles {
		writeSource(t, st, b, 16)
	}

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(st,
		staticSelector{models: []domain.ModelRef{domain.RegionRef("CP1")}},
		domain.Evaluators{Region: identityEvaluator{}},
		writer, discardLogger(), metrics, pipeline.WithRunID("run-e2e"))

	require.NoError(t, p.Run(ctx, bundles, pipeline.Options{SourceKey: "B", Key: "E"}, 2))

	for _, b := range bundles {
		rec, header, err := st.Read(ctx, b, "E")
		require.NoError(t, err)
		assert.Equal(t, "FRD", header.Station)
		assert.Equal(t, []string{"CP1_Ex", "CP1_Ey"}, rec.Columns())
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-e2e-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := map[string]bool{}
	for range bundles {
		n := readNotification(ctx, t, consumer)
		assert.Equal(t, "run-e2e", n.Event.RunID)
		seen[n.Event.Source] = true
	}
	for _, b := range bundles {
		assert.True(t, seen[b], "missing notification for %s", b)
	}
}
