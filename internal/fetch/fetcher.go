// Package fetch downloads asset package archives over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NetworkError reports a fetch that failed in transport or with a
// non-success status. A partial file is never left behind.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Fetcher downloads files, limiting request rate per host so batch runs
// stay polite to asset servers.
type Fetcher struct {
	client   *http.Client
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
}

// New returns a Fetcher with a 30s-timeout HTTP client and a default limit
// of one request per second per host.
func New() *Fetcher {
	return NewWithClient(&http.Client{Timeout: 30 * time.Second})
}

// NewWithClient returns a Fetcher using the given HTTP client.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{
		client:   client,
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Every(time.Second),
	}
}

// SetPerHostInterval adjusts the per-host politeness interval. A
// non-positive interval disables rate limiting. Call before the first
// Fetch; hosts already seen keep their existing limiter.
func (f *Fetcher) SetPerHostInterval(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		f.perHost = rate.Inf
	} else {
		f.perHost = rate.Every(d)
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(f.perHost, 1)
	f.limiters[host] = l
	return l
}

// Fetch streams the resource at rawURL into destDir, creating the directory
// if absent. The local filename comes from the URL's path component. The
// body is written to a temporary file and renamed into place only on
// success, so the caller never sees a partial download.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		return "", &NetworkError{URL: rawURL, Err: fmt.Errorf("URL path has no filename component")}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	destPath := filepath.Join(destDir, name)

	if err := f.limiterFor(parsed.Hostname()).Wait(ctx); err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := f.writeBody(resp, destPath); err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}

	slog.Info("Downloaded", "url", rawURL, "path", destPath)
	return destPath, nil
}

// writeBody streams the response body to destPath via a .tmp sibling,
// logging progress as an observable side effect only.
func (f *Fetcher) writeBody(resp *http.Response, destPath string) error {
	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	total := resp.ContentLength
	var downloaded int64
	var lastLogged int64
	const logEvery = 10 * 1024 * 1024

	buf := make([]byte, 32*1024)
	for {
		nr, rerr := resp.Body.Read(buf)
		if nr > 0 {
			nw, werr := out.Write(buf[:nr])
			downloaded += int64(nw)
			if werr == nil && nw < nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				err = werr
				break
			}
			if downloaded-lastLogged >= logEvery {
				lastLogged = downloaded
				if total > 0 {
					slog.Debug("Download progress",
						"downloaded_mb", downloaded/(1024*1024),
						"total_mb", total/(1024*1024),
						"progress", fmt.Sprintf("%.1f%%", float64(downloaded)/float64(total)*100))
				} else {
					slog.Debug("Download progress", "downloaded_mb", downloaded/(1024*1024))
				}
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				err = rerr
			}
			break
		}
	}

	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}
