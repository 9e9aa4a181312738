// Package assets locates sample CSV files next to the collection document,
// probes whether they exist and fetches their bytes.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/metrics"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultFetchTimeout = 60 * time.Second

	probeMemoSize    = 256
	probeConcurrency = 8
)

type Options struct {
	// BaseURL is the http(s) directory holding the sample files.
	BaseURL string
	// HTTPClient defaults to a client with DefaultFetchTimeout.
	HTTPClient   *http.Client
	ProbeTimeout time.Duration
	// ProbeCacheTTL enables a short-lived memo of probe results. Zero disables it.
	ProbeCacheTTL time.Duration
	Logger        *slog.Logger
}

type Resolver struct {
	base         string
	client       *http.Client
	probeTimeout time.Duration
	probes       *expirable.LRU[string, bool]
	logger       *slog.Logger
}

func NewResolver(opts Options) (*Resolver, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse assets base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported assets url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("assets url host is empty")
	}

	r := &Resolver{
		base:         base,
		client:       opts.HTTPClient,
		probeTimeout: opts.ProbeTimeout,
		logger:       opts.Logger,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if r.probeTimeout <= 0 {
		r.probeTimeout = DefaultProbeTimeout
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if opts.ProbeCacheTTL > 0 {
		r.probes = expirable.NewLRU[string, bool](probeMemoSize, nil, opts.ProbeCacheTTL)
	}
	return r, nil
}

// ResolvePath returns the URL of a sample file. The name must be a bare
// file name ending in .csv.
func (r *Resolver) ResolvePath(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", internalerrors.New(internalerrors.ErrInvalidInput, "filename is required", nil)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", internalerrors.New(internalerrors.ErrInvalidInput, fmt.Sprintf("filename %q must not contain path elements", name), nil)
	}
	if !strings.HasSuffix(name, schema.SampleFileSuffix) {
		return "", internalerrors.New(internalerrors.ErrInvalidInput, fmt.Sprintf("filename %q must end with %s", name, schema.SampleFileSuffix), nil)
	}
	return r.base + "/" + url.PathEscape(name), nil
}

// Exists reports whether the sample file is reachable. Any failure,
// including an invalid name, counts as absent.
func (r *Resolver) Exists(ctx context.Context, filename string) bool {
	if r.probes != nil {
		if ok, hit := r.probes.Get(filename); hit {
			metrics.ProbesTotal.WithLabelValues("memo").Inc()
			return ok
		}
	}

	ok := r.probe(ctx, filename)
	if r.probes != nil {
		r.probes.Add(filename, ok)
	}
	if ok {
		metrics.ProbesTotal.WithLabelValues("available").Inc()
	} else {
		metrics.ProbesTotal.WithLabelValues("missing").Inc()
	}
	return ok
}

func (r *Resolver) probe(ctx context.Context, filename string) bool {
	target, err := r.ResolvePath(filename)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.DebugContext(ctx, "sample probe failed", "file", filename, "error", err.Error())
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Reset drops memoized probe results. Call it whenever the active collection changes.
func (r *Resolver) Reset() {
	if r.probes != nil {
		r.probes.Purge()
	}
}

// CheckAll probes every file concurrently and waits for all of them.
func (r *Resolver) CheckAll(ctx context.Context, filenames []string) models.FileExistenceStatus {
	status := make(models.FileExistenceStatus, len(filenames))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(probeConcurrency)
	for _, name := range filenames {
		mu.Lock()
		_, seen := status[name]
		if !seen {
			status[name] = false
		}
		mu.Unlock()
		if seen {
			continue
		}

		g.Go(func() error {
			ok := r.Exists(ctx, name)
			mu.Lock()
			status[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return status
}

// FetchBytes downloads a sample file into memory.
func (r *Resolver) FetchBytes(ctx context.Context, filename string) ([]byte, error) {
	target, err := r.ResolvePath(filename)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, internalerrors.New(internalerrors.ErrTransfer, "create download request failed", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrTransfer)).Inc()
		return nil, internalerrors.New(internalerrors.ErrTransfer, fmt.Sprintf("download %s failed", filename), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrNotFound)).Inc()
		return nil, internalerrors.New(internalerrors.ErrNotFound, fmt.Sprintf("sample file %s not found", filename), nil)
	case resp.StatusCode == http.StatusForbidden:
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrForbidden)).Inc()
		return nil, internalerrors.New(internalerrors.ErrForbidden, fmt.Sprintf("access to sample file %s denied", filename), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrTransfer)).Inc()
		return nil, internalerrors.New(internalerrors.ErrTransfer, fmt.Sprintf("download %s returned status=%d", filename, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrTransfer)).Inc()
		return nil, internalerrors.New(internalerrors.ErrTransfer, fmt.Sprintf("read %s failed", filename), err)
	}
	if len(body) == 0 {
		metrics.DownloadsTotal.WithLabelValues(string(internalerrors.ErrEmptyFile)).Inc()
		return nil, internalerrors.New(internalerrors.ErrEmptyFile, fmt.Sprintf("sample file %s is empty", filename), nil)
	}

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	metrics.DownloadBytesTotal.Add(float64(len(body)))
	return body, nil
}

// Download fetches a sample file and writes it under dir. Existing files are
// kept unless overwrite is set.
func (r *Resolver) Download(ctx context.Context, filename, dir string, overwrite bool) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", internalerrors.New(internalerrors.ErrInvalidInput, "download dir is empty", nil)
	}

	data, err := r.FetchBytes(ctx, filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir failed: %w", err)
	}
	filePath := filepath.Join(dir, strings.TrimSpace(filename))

	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	out, err := os.OpenFile(filePath, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open output file failed: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		if closeErr := out.Close(); closeErr != nil {
			return "", fmt.Errorf("write sample content failed: %w (close output file failed: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write sample content failed: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close output file failed: %w", err)
	}

	r.logger.InfoContext(ctx, "sample downloaded", "file", filename, "path", filePath, "bytes", len(data))
	return filePath, nil
}

// DownloadAll downloads files in order and stops at the first failure.
func (r *Resolver) DownloadAll(ctx context.Context, filenames []string, dir string, overwrite bool) ([]string, error) {
	files := make([]string, 0, len(filenames))
	for _, name := range filenames {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		p, err := r.Download(ctx, name, dir, overwrite)
		if err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}
