package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/papapumpkin/ccgtools/internal/fsutil"
	"github.com/papapumpkin/ccgtools/internal/runlog"
)

var (
	// ErrAllMirrorsFailed is returned when no eligible mirror delivered a package.
	ErrAllMirrorsFailed = errors.New("unable to download package")

	// ErrNoMirror is returned when a package has no mirror for the current OS.
	ErrNoMirror = errors.New("no mirror for this operating system")
)

// Downloader fetches the resource at url into the file dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// HTTPDownloader downloads over HTTP(S). file:// URLs are copied from the
// local file system, which serves mirrors on shared drives.
type HTTPDownloader struct {
	Client *http.Client
}

// Download implements Downloader.
func (d HTTPDownloader) Download(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme == "file" {
		return fsutil.CopyFile(filepath.FromSlash(u.Path), dest)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return f.Close()
}

// DownloadPackage tries the entry's mirrors in order, skipping those that do
// not serve target, and returns the path of the first successful download. The
// file is named after the package plus the mirror's extension.
func DownloadPackage(ctx context.Context, d Downloader, entry InputEntry, target OS, dir string, log *runlog.Logger) (string, error) {
	var errs []error
	for _, m := range entry.Mirrors {
		if !m.OS.Includes(target) {
			continue
		}
		dest := filepath.Join(dir, entry.Name+m.Extension())
		err := d.Download(ctx, m.URL, dest)
		if err == nil {
			return dest, nil
		}
		log.Warn().Str("package", entry.Name).Str("url", m.URL).Err(err).Msg("mirror failed")
		errs = append(errs, fmt.Errorf("%s: %w", m.URL, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s (%s)", ErrNoMirror, entry.Name, target)
	}
	return "", fmt.Errorf("%w %s: %w", ErrAllMirrorsFailed, entry.Name, errors.Join(errs...))
}
