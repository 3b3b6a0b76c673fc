// Package artifact downloads generated images to local files.
package artifact

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/filesystem"
	"github.com/doeshing/afcover/internal/pkg/slug"
	"github.com/doeshing/afcover/internal/ports"
)

// Options configure a Fetcher.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     ports.Logger
	Clock      func() time.Time
}

// Fetcher downloads artifact URLs sequentially, stopping at the first failure.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     ports.Logger
	now        func() time.Time
	suffix     func() string
}

// NewFetcher builds a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		now:        opts.Clock,
		suffix:     randomSuffix,
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	if f.timeout <= 0 || f.timeout > domain.DefaultDownloadTimeout {
		f.timeout = domain.DefaultDownloadTimeout
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Fetch implements ports.ArtifactFetcher. Files are named
// {base}-{timestamp}-{random}-{index}.{ext} with a 1-based index. Files already
// written stay on disk when a later download fails.
func (f *Fetcher) Fetch(ctx context.Context, urls []string, target domain.ArtifactTarget) ([]domain.Artifact, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	dir := target.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return nil, &domain.DownloadError{Index: 1, URL: urls[0], Err: fmt.Errorf("create output dir: %w", err)}
	}

	base := safeBase(target.BaseName)
	stamp := f.now().Format(domain.ArtifactStampFormat)
	batch := f.suffix()
	ext := target.Format.Extension()

	artifacts := make([]domain.Artifact, 0, len(urls))
	for i, url := range urls {
		index := i + 1
		path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s-%d.%s", base, stamp, batch, index, ext))
		n, err := f.download(ctx, url, path)
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("artifact download failed", map[string]interface{}{"index": index, "url": url, "error": err.Error()})
			}
			return artifacts, &domain.DownloadError{Index: index, URL: url, Err: err}
		}
		if f.logger != nil {
			f.logger.Debug("artifact saved", map[string]interface{}{"index": index, "path": path, "size": humanize.Bytes(uint64(n))})
		}
		artifacts = append(artifacts, domain.Artifact{Index: index, URL: url, Path: path, Bytes: n})
	}
	return artifacts, nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	n, err := filesystem.WriteAtomic(ctx, dest, resp.Body, domain.ArtifactFilePermissions)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		_ = os.Remove(dest)
		return 0, fmt.Errorf("empty body")
	}
	return n, nil
}

// safeBase keeps caller-provided names inside the output directory.
func safeBase(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return slug.Make(name)
	}
	return name
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var _ ports.ArtifactFetcher = (*Fetcher)(nil)
