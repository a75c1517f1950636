package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	util "github.com/slobbe/zap/internal/helpers"
	"github.com/slobbe/zap/internal/logging"
	models "github.com/slobbe/zap/internal/types"
)

const (
	appImageExt = ".AppImage"
	partSuffix  = ".part"

	// minArtifactSize rejects responses too small to be a bundle, such as an
	// HTML error page served with a 200.
	minArtifactSize = 1024
)

var allowedContentTypes = map[string]bool{
	"application/octet-stream":       true,
	"binary/octet-stream":            true,
	"application/x-executable":       true,
	"application/x-elf":              true,
	"application/x-appimage":         true,
	"application/vnd.appimage":       true,
	"application/x-iso9660-appimage": true,
}

// ProgressFunc receives the cumulative byte count after every chunk. total is
// 0 when the server did not declare a length.
type ProgressFunc func(downloaded, total int64)

// ClientOptions configures the HTTP client used for downloads.
type ClientOptions struct {
	// Timeout bounds dialing and waiting for response headers. The body
	// transfer itself is bounded only by the request context.
	Timeout time.Duration

	TLSHandshakeTimeout time.Duration
	UserAgent           string
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:             30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		UserAgent:           "zap",
	}
}

// NewHTTPClient builds a client from opts, filling zero values from
// DefaultClientOptions.
func NewHTTPClient(opts ClientOptions) *http.Client {
	defaults := DefaultClientOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.TLSHandshakeTimeout <= 0 {
		opts.TLSHandshakeTimeout = defaults.TLSHandshakeTimeout
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ResponseHeaderTimeout: opts.Timeout,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Fetcher downloads bundles into the cache directory.
type Fetcher struct {
	client    *http.Client
	cacheDir  string
	userAgent string
	log       zerolog.Logger
}

func NewFetcher(client *http.Client, cacheDir string) *Fetcher {
	if client == nil {
		client = NewHTTPClient(DefaultClientOptions())
	}
	return &Fetcher{
		client:    client,
		cacheDir:  cacheDir,
		userAgent: DefaultClientOptions().UserAgent,
		log:       logging.GetLogger("fetcher"),
	}
}

// PreparePath picks the cache path for a download: the URL's last path
// segment when it names an AppImage, otherwise {fallbackName}.AppImage.
func (f *Fetcher) PreparePath(rawURL, fallbackName string) string {
	name := fallbackName + appImageExt
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		segment := path.Base(u.Path)
		if segment != "/" && segment != "." && !strings.HasPrefix(segment, ".") && util.HasExtension(segment, appImageExt) {
			name = segment
		}
	}
	return filepath.Join(f.cacheDir, name)
}

// Download fetches rawURL into destination. The body is streamed to a .part
// sibling that is renamed over destination only after a complete transfer.
func (f *Fetcher) Download(ctx context.Context, rawURL, destination string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrConnection, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.log.Debug().Str("url", rawURL).Str("destination", destination).Msg("starting download")

	resp, err := f.client.Do(req)
	if err != nil {
		return &models.DownloadError{URL: rawURL, Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(rawURL, resp.StatusCode); err != nil {
		return err
	}
	if err := checkArtifact(rawURL, resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	part := destination + partSuffix
	written, err := writePart(resp.Body, part, total, progress)
	if err != nil {
		_ = os.Remove(part)
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrStream, Err: err}
	}

	if err := os.Rename(part, destination); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := util.MakeExecutable(destination); err != nil {
			f.log.Warn().Err(err).Str("path", destination).Msg("could not mark bundle executable")
		}
	}

	f.log.Info().Str("path", destination).Int64("bytes", written).Msg("download complete")
	return nil
}

func writePart(body io.Reader, part string, total int64, progress ProgressFunc) (int64, error) {
	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return written, werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return written, rerr
		}
	}

	if total > 0 && written != total {
		out.Close()
		return written, fmt.Errorf("received %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return written, err
	}
	return written, out.Close()
}

func checkStatus(rawURL string, status int) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusNotFound:
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrNotFound, StatusCode: status}
	case status == http.StatusForbidden:
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrForbidden, StatusCode: status}
	case status >= 500:
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrServer, StatusCode: status}
	default:
		return &models.DownloadError{URL: rawURL, Kind: models.DownloadErrStatus, StatusCode: status}
	}
}

func checkArtifact(rawURL string, resp *http.Response) error {
	if resp.ContentLength > 0 && resp.ContentLength < minArtifactSize {
		return &models.InvalidArtifactError{
			URL:    rawURL,
			Reason: fmt.Sprintf("response is only %d bytes", resp.ContentLength),
		}
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedContentTypes[strings.ToLower(mediaType)] {
		return &models.InvalidArtifactError{
			URL:    rawURL,
			Reason: fmt.Sprintf("unexpected content type %q", contentType),
		}
	}
	return nil
}

func classifyTransportError(err error) models.DownloadErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.DownloadErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.DownloadErrTimeout
	}
	return models.DownloadErrConnection
}
