package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/h2non/filetype"
	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/domain"
)

// headerSize is how many leading bytes filetype needs to identify a file.
const headerSize = 261

const (
	lockFileName   = ".chapter.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// ChapterDownloader implements task.Downloader over HTTP.
type ChapterDownloader struct {
	client *http.Client
	cfg    config.DownloadConfig
	logger *slog.Logger

	// lockWait bounds how long Download waits for the chapter lock
	lockWait time.Duration
}

// New creates a ChapterDownloader. A nil client means http.DefaultClient.
func New(cfg config.DownloadConfig, client *http.Client, logger *slog.Logger) *ChapterDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChapterDownloader{
		client:   client,
		cfg:      cfg,
		logger:   logger.With("component", "chapter_downloader"),
		lockWait: 5 * time.Second,
	}
}

// ChapterDir returns the directory a job's pages are written to.
func (d *ChapterDownloader) ChapterDir(job domain.Job) string {
	return filepath.Join(d.cfg.OutputDir, SafeName(job.Title), SafeName(job.Chapter))
}

// Download fetches every page of job in order. It stops at the first page
// that fails; pages already written are left in place.
func (d *ChapterDownloader) Download(ctx context.Context, job domain.Job) error {
	if len(job.Pages) == 0 {
		return ErrNoPages
	}

	dir := d.ChapterDir(job)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}

	unlock, err := d.lock(ctx, dir)
	if err != nil {
		return err
	}
	defer unlock()

	logger := d.logger.With("job_id", job.ID, "chapter", job.Chapter)
	start := time.Now()
	var total int64

	for i, page := range job.Pages {
		n, err := d.fetchPage(ctx, dir, i+1, page)
		if err != nil {
			return fmt.Errorf("page %d of %d: %w", i+1, len(job.Pages), err)
		}
		total += n
		logger.Debug("page downloaded", "page", i+1, "bytes", n)
	}

	logger.Info("chapter downloaded",
		"pages", len(job.Pages),
		"bytes", total,
		"dir", dir,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// lock takes the chapter directory's file lock, waiting up to lockWait.
func (d *ChapterDownloader) lock(ctx context.Context, dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockFileName))

	lockCtx, cancel := context.WithTimeout(ctx, d.lockWait)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if !locked {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to lock chapter directory: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrChapterLocked, dir)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			d.logger.Warn("failed to release chapter lock", "dir", dir, "error", err)
		}
	}, nil
}

// fetchPage downloads one page into dir as NNN.<ext> and returns its size.
func (d *ChapterDownloader) fetchPage(ctx context.Context, dir string, index int, rawURL string) (n int64, err error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if d.cfg.MaxPageBytes > 0 && resp.ContentLength > d.cfg.MaxPageBytes {
		return 0, fmt.Errorf("%w: %d bytes", ErrPageTooLarge, resp.ContentLength)
	}

	body := bufio.NewReaderSize(resp.Body, headerSize)
	head, err := body.Peek(headerSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("failed to read page: %w", err)
	}
	if !filetype.IsImage(head) {
		return 0, ErrNotImage
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return 0, fmt.Errorf("failed to detect page type: %w", err)
	}

	base := fmt.Sprintf("%03d", index)
	tmp, err := os.CreateTemp(dir, base+".part.*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	var src io.Reader = body
	if d.cfg.MaxPageBytes > 0 {
		src = io.LimitReader(body, d.cfg.MaxPageBytes+1)
	}
	n, err = io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("failed to write page: %w", err)
	}
	if d.cfg.MaxPageBytes > 0 && n > d.cfg.MaxPageBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrPageTooLarge, d.cfg.MaxPageBytes)
		return 0, err
	}

	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync page: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close page: %w", err)
	}

	dest := filepath.Join(dir, base+"."+kind.Extension)
	if err = os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("failed to move page into place: %w", err)
	}

	return n, nil
}

// SafeName turns a title or chapter into a single path segment.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)

	name = strings.Trim(name, ". ")
	if name == "" {
		return "_"
	}
	return name
}
