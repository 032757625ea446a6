package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type uploadRecorder struct {
	mu     sync.Mutex
	paths  []string
	names  []string
	bodies []string
}

func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := New(client, cfg)
	require.NoError(t, err)
	return s
}

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{Bucket: "  "})
	require.Error(t, err)
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	rec := &uploadRecorder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.Path)
		rec.names = append(rec.names, r.URL.Query().Get("name"))
		rec.bodies = append(rec.bodies, string(body))
		rec.mu.Unlock()
		_, _ = io.WriteString(w, `{"name":"matchwatch/r.json","bucket":"reports-bucket"}`)
	})

	s := newTestStore(t, handler, Config{Bucket: "reports-bucket", Prefix: "/matchwatch/"})
	uri, err := s.PutObject(context.Background(), "r.json", "application/json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	require.Equal(t, "gs://reports-bucket/matchwatch/r.json", uri)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{"matchwatch/r.json"}, rec.names)
	require.Contains(t, rec.paths[0], "/upload/storage/v1/b/reports-bucket/o")
	require.Contains(t, rec.bodies[0], `{"ok":true}`)
}

func TestPutObjectSurfacesServerErrors(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	s := newTestStore(t, handler, Config{Bucket: "reports-bucket"})
	_, err := s.PutObject(context.Background(), "r.json", "application/json", strings.NewReader("{}"))
	require.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, http.NotFoundHandler(), Config{Bucket: "reports-bucket"})
	_, err := s.PutObject(context.Background(), " / ", "", strings.NewReader("{}"))
	require.Error(t, err)
}
