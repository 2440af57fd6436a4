package icsfeed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "afisz/internal/log"
)

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// fetcher downloads feed bodies with ETag / Last-Modified revalidation and a
// disk-backed cache, falling back to the cached body on network failure.
type fetcher struct {
	client   *http.Client
	cacheDir string
}

func newFetcher(cacheDir string) *fetcher {
	if cacheDir == "" {
		// Caller should set this explicitly; fall back to a relative dir
		// so development runs work without root permissions.
		cacheDir = "./var/ics-cache"
	}
	return &fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// fetch retrieves one feed body, honoring ETag and Last-Modified. The cache
// lives under f.cacheDir keyed by a hash of the URL.
func (f *fetcher) fetch(ctx context.Context, id, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("icsfeed: source URL is empty")
	}

	cachePath := f.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	// Conditional headers from cache metadata.
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", id, "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if len(cachedBody) > 0 {
			appLog.Warn("ics fetch network error, using cached body", "err", err, "id", id)
			return cachedBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("ics cache save failed", err, "id", id)
		}
		appLog.Info("ics fetch success", "id", id, "bytes", len(body))
		return body, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			// 304 but no cached body: treat as error.
			return nil, errors.New("icsfeed: 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", id)
		return cachedBody, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Warn("ics fetch non-OK, using cached body", "id", id, "status", resp.StatusCode)
			return cachedBody, nil
		}
		return nil, errors.New(resp.Status)
	}
}

func (f *fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides query strings and paths of feed URLs in logs; private
// feeds carry access tokens there.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	host := u[i+3:]
	if j := strings.IndexByte(host, '/'); j != -1 {
		host = host[:j]
	}
	return u[:i+3] + host + redactedSuffix
}
