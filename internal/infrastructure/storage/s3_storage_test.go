package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ArtifactStore_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{Bucket: "b", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("defaults", func(t *testing.T) {
		store, err := NewS3ArtifactStore(&config.StorageConfig{
			Bucket:    "artifacts",
			AccessKey: "k",
			SecretKey: "s",
			Endpoint:  "localhost:9000",
			Prefix:    "/delivery/",
		})
		require.NoError(t, err)
		assert.Equal(t, "artifacts", store.GetBucket())
		assert.Equal(t, 15*time.Minute, store.presignExpiration)
		assert.Equal(t, "delivery/a/b.png", store.objectKey("/a/b.png"))
	})

	t.Run("options", func(t *testing.T) {
		store, err := NewS3ArtifactStore(&config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"},
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, store.presignExpiration)
	})
}

func TestS3ArtifactStore_Put(t *testing.T) {
	var (
		mu          sync.Mutex
		method      string
		path        string
		contentType string
		body        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := NewS3ArtifactStore(&config.StorageConfig{
		Bucket:       "artifacts",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     server.URL,
		UsePathStyle: true,
		Prefix:       "delivery",
	})
	require.NoError(t, err)

	t.Run("uploads under the prefix", func(t *testing.T) {
		err := store.Put(context.Background(), "screenshots/r1/doordash/sync.png", []byte("png-bytes"), "image/png")
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, http.MethodPut, method)
		assert.Equal(t, "/artifacts/delivery/screenshots/r1/doordash/sync.png", path)
		assert.Equal(t, "image/png", contentType)
		assert.Contains(t, string(body), "png-bytes")
	})

	t.Run("empty key returns error", func(t *testing.T) {
		err := store.Put(context.Background(), "", []byte("x"), "image/png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key is required")
	})
}

func TestS3ArtifactStore_DownloadURL(t *testing.T) {
	store, err := NewS3ArtifactStore(&config.StorageConfig{
		Bucket:       "artifacts",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	url, expiresAt, err := store.DownloadURL(context.Background(), "screenshots/x.png")
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "localhost:9000"))
	assert.True(t, strings.Contains(url, "artifacts"))
	assert.True(t, expiresAt.After(time.Now()))

	_, _, err = store.DownloadURL(context.Background(), "")
	require.Error(t, err)
}

func TestScreenshotKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.FixedZone("EST", -5*3600))
	key := ScreenshotKey("r1", delivery.PlatformUberEats, "sync", at)
	assert.Equal(t, "screenshots/r1/ubereats/sync-20260301T173005Z.png", key)
}

func TestNopArtifactStore(t *testing.T) {
	assert.NoError(t, NopArtifactStore{}.Put(context.Background(), "k", []byte("x"), "image/png"))
}
