// Package downloader fetches remote inputs onto local disk so they can be
// extracted like any other file.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/fsutil"
)

const userAgent = "flatpack/0.1 (Go-client)"

// ErrStatus wraps non-200 responses.
var ErrStatus = errors.New("bad http status")

// Recorder receives download events. *db.Ledger satisfies it.
type Recorder interface {
	Record(ctx context.Context, ev db.Event)
}

// Downloader saves URLs into a directory, one file per URL, never overwriting.
type Downloader struct {
	dir      string
	client   *http.Client
	recorder Recorder
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

type Option func(*Downloader)

func WithClient(c *http.Client) Option { return func(d *Downloader) { d.client = c } }
func WithRecorder(r Recorder) Option { return func(d *Downloader) { d.recorder = r } }
func WithLogger(l *slog.Logger) Option { return func(d *Downloader) { d.logger = l } }

// WithRetry retries throttled or unavailable responses up to attempts times,
// doubling the wait from backoff each time.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(d *Downloader) { d.attempts, d.backoff = attempts, backoff }
}

// DefaultHTTPClient creates a default http.Client with a reasonable timeout.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Minute}
}

func New(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		dir:      dir,
		client:   DefaultHTTPClient(),
		attempts: 3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.attempts < 1 {
		d.attempts = 1
	}
	return d
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FileName is the local name for rawURL: the last path segment, or
// "download" when there is none.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.EscapedPath())
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == ".." {
		return "download"
	}
	return name
}

// FetchAll downloads urls sequentially. The returned slice is aligned with
// urls; failed entries are empty and their errors are joined.
func (d *Downloader) FetchAll(ctx context.Context, urls []string) ([]string, error) {
	paths := make([]string, len(urls))
	var finalErr error
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("Download sequence cancelled.")
			return paths, errors.Join(finalErr, err)
		}
		l := d.logger.With(slog.String("url", u), slog.Int("num", i+1), slog.Int("total", len(urls)))
		p, err := d.fetch(ctx, l, u)
		if err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("download %s: %w", u, err))
			continue
		}
		paths[i] = p
	}
	return paths, finalErr
}

// Fetch downloads one URL and returns the saved path.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (string, error) {
	return d.fetch(ctx, d.logger.With(slog.String("url", rawURL)), rawURL)
}

func (d *Downloader) fetch(ctx context.Context, l *slog.Logger, rawURL string) (string, error) {
	start := time.Now()
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir %s: %w", d.dir, err)
	}
	d.record(ctx, db.Event{Path: rawURL, FileType: db.FileTypeArchive, Event: db.EventDownloadStart})
	l.Info("Starting download.")

	var saved string
	var err error
	wait := d.backoff
	for attempt := 1; attempt <= d.attempts; attempt++ {
		saved, err = d.download(ctx, rawURL)
		if err == nil || !retryable(err) || attempt == d.attempts {
			break
		}
		l.Warn("Download failed (rate limit/unavailable suspected), retrying.", slog.Int("attempt", attempt), slog.Duration("wait", wait), "error", err)
		select {
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
			attempt = d.attempts
		case <-time.After(wait):
			wait *= 2
		}
	}
	elapsed := time.Since(start)
	if err != nil {
		l.Error("Download failed.", "error", err, slog.Duration("duration", elapsed.Round(time.Millisecond)))
		d.record(ctx, db.Event{Path: rawURL, FileType: db.FileTypeArchive, Event: db.EventError, Message: err.Error(), Duration: &elapsed})
		return "", err
	}
	l.Info("Download complete.", slog.String("saved_path", saved), slog.Duration("duration", elapsed.Round(time.Millisecond)))
	d.record(ctx, db.Event{Path: rawURL, FileType: db.FileTypeArchive, Event: db.EventDownloadEnd, OutputPath: saved, Duration: &elapsed})
	return saved, nil
}

// download streams one response body into a fresh file.
func (d *Downloader) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/octet-stream,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http do request for %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(bodyBytes))}
	}

	f, err := fsutil.CreateUnique(filepath.Join(d.dir, FileName(rawURL)), 0o644)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed reading body from %s: %w", rawURL, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

func (d *Downloader) record(ctx context.Context, ev db.Event) {
	if d.recorder != nil {
		d.recorder.Record(ctx, ev)
	}
}

type statusError struct {
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: '%s': %s", ErrStatus, e.status, e.body)
}

func (e *statusError) Unwrap() error { return ErrStatus }

func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == http.StatusTooManyRequests || se.code == http.StatusServiceUnavailable
}
