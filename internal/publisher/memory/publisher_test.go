package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "job-settled", map[string]string{"job_id": "j-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "reports", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "job-settled", msgs[0].Topic)
	require.JSONEq(t, `{"job_id":"j-1"}`, string(msgs[0].Data))

	msgs[0].Topic = "modified"
	require.Equal(t, "job-settled", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "t", func() {})
	require.Error(t, err)
	require.Empty(t, New().Messages())
}
