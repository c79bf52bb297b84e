// Package fetch downloads raw vendor artifacts into the local cache. Every
// artifact is written atomically and fingerprinted so a run manifest can
// record exactly which bytes a derivation consumed.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
)

// Result describes one fetched (or cache-served) artifact.
type Result struct {
	Source    string    `json:"source"`
	Date      time.Time `json:"date"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	FromCache bool      `json:"from_cache"`
}

// Fetcher downloads vendor files with retry, per-source rate limiting and a
// skip-if-cached fast path.
type Fetcher struct {
	client  *http.Client
	paths   *config.Paths
	limiter *rate.Limiter
	retries int
	logger  *slog.Logger
}

// NewFetcher builds a fetcher for one source configuration.
func NewFetcher(src config.SourceConfig, paths *config.Paths, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := src.RateLimit
	if limit <= 0 {
		limit = 1
	}
	return &Fetcher{
		client:  &http.Client{Timeout: src.Timeout},
		paths:   paths,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		retries: src.Retries,
		logger:  logger,
	}
}

// Fetch downloads the artifact for source and date from url into the raw
// cache layout. A file already present in the cache is fingerprinted and
// returned without touching the network.
func (f *Fetcher) Fetch(ctx context.Context, source string, date time.Time, url string) (Result, error) {
	ext := urlExtension(url)
	dest := f.paths.RawFile(source, date, ext)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		sum, err := fileSHA256(dest)
		if err != nil {
			return Result{}, pipeerrors.Storage("fingerprint cached artifact", err)
		}
		f.logger.Debug("raw artifact already cached",
			slog.String("source", source),
			slog.String("path", dest))
		return Result{
			Source: source, Date: date, URL: url, Path: dest,
			SHA256: sum, SizeBytes: info.Size(), FromCache: true,
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Result{}, pipeerrors.Storage("create raw cache directory", err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			f.logger.Warn("retrying fetch",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result{}, pipeerrors.FetchFailed(url, ctx.Err())
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{}, pipeerrors.FetchFailed(url, err)
		}

		res, err := f.download(ctx, source, date, url, dest)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return Result{}, pipeerrors.FetchFailed(url, lastErr)
}

func (f *Fetcher) download(ctx context.Context, source string, date time.Time, url, dest string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "fudata/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return Result{}, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Result{}, err
	}
	if size == 0 {
		return Result{}, fmt.Errorf("empty response body")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return Result{}, err
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	f.logger.Info("fetched raw artifact",
		slog.String("source", source),
		slog.String("date", date.Format("2006-01-02")),
		slog.String("path", dest),
		slog.Int64("size_bytes", size),
		slog.String("sha256", sum))
	return Result{
		Source: source, Date: date, URL: url, Path: dest,
		SHA256: sum, SizeBytes: size,
	}, nil
}

// BuildURL expands the {YYYY} {MM} {DD} placeholders of a source URL
// pattern for one trade date.
func BuildURL(pattern string, date time.Time) string {
	r := strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", date.Year()),
		"{MM}", fmt.Sprintf("%02d", date.Month()),
		"{DD}", fmt.Sprintf("%02d", date.Day()),
	)
	return r.Replace(pattern)
}

// urlExtension preserves compound suffixes like .csv.zip in the cache name.
func urlExtension(url string) string {
	base := url
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	base = filepath.Base(base)
	if strings.HasSuffix(strings.ToLower(base), ".csv.zip") {
		return ".csv.zip"
	}
	if ext := filepath.Ext(base); ext != "" {
		return ext
	}
	return ".bin"
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
