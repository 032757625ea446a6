package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	payload := []byte(`{"sources":[]}`)
	uri, err := s.PutObject(context.Background(), "reports/r.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://reports/r.json", uri)

	payload[0] = 'X'
	data, contentType, ok := s.Object("reports/r.json")
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, `{"sources":[]}`, string(data))

	_, _, ok = s.Object("missing")
	require.False(t, ok)
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
}
