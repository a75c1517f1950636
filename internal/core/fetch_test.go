package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	models "github.com/slobbe/zap/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparePath(t *testing.T) {
	f := NewFetcher(nil, "/cache")

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "appimage segment", url: "https://example.com/dl/App-1.0-x86_64.AppImage", want: "/cache/App-1.0-x86_64.AppImage"},
		{name: "case insensitive", url: "https://example.com/app.appimage", want: "/cache/app.appimage"},
		{name: "query ignored", url: "https://example.com/App.AppImage?token=abc#frag", want: "/cache/App.AppImage"},
		{name: "not a bundle", url: "https://example.com/download?id=42", want: "/cache/myapp.AppImage"},
		{name: "archive", url: "https://example.com/App.tar.gz", want: "/cache/myapp.AppImage"},
		{name: "bare host", url: "https://example.com", want: "/cache/myapp.AppImage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.PreparePath(tt.url, "myapp"))
		})
	}
}

func TestDownloadWritesFileAndReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("A"), 100*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "appimages", "App.AppImage")
	var last, total int64
	calls := 0

	err := NewFetcher(server.Client(), filepath.Dir(dest)).Download(context.Background(), server.URL+"/App.AppImage", dest, func(downloaded, size int64) {
		calls++
		assert.GreaterOrEqual(t, downloaded, last)
		last, total = downloaded, size
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int64(len(payload)), last)
	assert.Equal(t, int64(len(payload)), total)
	assert.Positive(t, calls)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	_, err = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadWithoutContentLengthStillReadsBody(t *testing.T) {
	payload := bytes.Repeat([]byte("B"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		flusher := w.(http.Flusher)
		// Flushing before the body is complete forces chunked encoding.
		_, _ = w.Write(payload[:1024])
		flusher.Flush()
		_, _ = w.Write(payload[1024:])
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "App.AppImage")
	var total int64 = -1

	err := NewFetcher(server.Client(), t.TempDir()).Download(context.Background(), server.URL, dest, func(_, size int64) {
		total = size
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int64(0), total)
}

func TestDownloadStreamFailureLeavesNothingBehind(t *testing.T) {
	const declared = 8192
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			conn, buf, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack failed: %v", err)
				return
			}
			fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: application/octet-stream\r\nContent-Length: %d\r\n\r\n", declared)
			_, _ = buf.Write(bytes.Repeat([]byte("x"), 2048))
			_ = buf.Flush()
			_ = conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(declared))
		_, _ = w.Write(bytes.Repeat([]byte("y"), declared))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "App.AppImage")
	fetcher := NewFetcher(server.Client(), filepath.Dir(dest))

	err := fetcher.Download(context.Background(), server.URL, dest, nil)
	var dlErr *models.DownloadError
	require.True(t, errors.As(err, &dlErr), "got %v", err)
	assert.Equal(t, models.DownloadErrStream, dlErr.Kind)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "destination must not exist after a failed transfer")
	_, err = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(err), "part file must be removed")

	require.NoError(t, fetcher.Download(context.Background(), server.URL, dest, nil))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(declared), info.Size())
}

func TestDownloadClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   models.DownloadErrorKind
	}{
		{status: http.StatusNotFound, want: models.DownloadErrNotFound},
		{status: http.StatusForbidden, want: models.DownloadErrForbidden},
		{status: http.StatusBadGateway, want: models.DownloadErrServer},
		{status: http.StatusTeapot, want: models.DownloadErrStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "App.AppImage")
			err := NewFetcher(server.Client(), t.TempDir()).Download(context.Background(), server.URL, dest, nil)

			var dlErr *models.DownloadError
			require.True(t, errors.As(err, &dlErr))
			assert.Equal(t, tt.want, dlErr.Kind)
			assert.Equal(t, tt.status, dlErr.StatusCode)
			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestDownloadRejectsSuspiciousResponses(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "html page", contentType: "text/html; charset=utf-8", body: bytes.Repeat([]byte("<p>"), 1000)},
		{name: "tiny body", contentType: "application/octet-stream", body: []byte("not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Header().Set("Content-Length", fmt.Sprint(len(tt.body)))
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "App.AppImage")
			err := NewFetcher(server.Client(), t.TempDir()).Download(context.Background(), server.URL, dest, nil)

			var artifactErr *models.InvalidArtifactError
			require.True(t, errors.As(err, &artifactErr), "got %v", err)
			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestDownloadAcceptsWhitelistedContentTypes(t *testing.T) {
	for contentType := range allowedContentTypes {
		t.Run(contentType, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", contentType)
				_, _ = w.Write(bytes.Repeat([]byte("z"), 2048))
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "App.AppImage")
			require.NoError(t, NewFetcher(server.Client(), t.TempDir()).Download(context.Background(), server.URL, dest, nil))
		})
	}
}

func TestDownloadConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewFetcher(nil, t.TempDir()).Download(context.Background(), url, filepath.Join(t.TempDir(), "a"), nil)

	var dlErr *models.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, models.DownloadErrConnection, dlErr.Kind)
}
