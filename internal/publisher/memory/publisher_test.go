package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "items", map[string]string{"url": "https://lacoste.ru/catalog/a/"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "runs", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, 2, pub.Len())
	require.Equal(t, "items", msgs[0].Topic)
	require.JSONEq(t, `{"url":"https://lacoste.ru/catalog/a/"}`, string(msgs[0].Data))
	require.Equal(t, `"payload"`, string(msgs[1].Data))

	msgs[0].Topic = "modified"
	require.Equal(t, "items", pub.Messages()[0].Topic, "Messages returns a copy")

	runs := pub.Topic("runs")
	require.Len(t, runs, 1)
	require.Equal(t, "memory-2", runs[0].ID)
	require.Empty(t, pub.Topic("missing"))
}

func TestPublisherRejectsInvalidMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "items", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
	require.Zero(t, pub.Len())
}

func TestPublisherLogsMessages(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	pub := New(WithLogger(zap.New(core)), WithLogger(nil))
	_, err := pub.Publish(context.Background(), "items", 1)
	require.NoError(t, err)

	entries := logs.FilterMessage("message recorded").All()
	require.Len(t, entries, 1)
	require.Equal(t, "items", entries[0].ContextMap()["topic"])
}
