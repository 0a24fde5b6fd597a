// ABOUTME: HTTP source backed by a local download cache
// ABOUTME: Fetches http(s) resources once and serves them as seekable files
package source

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// HTTPCache is a Factory for http:// and https:// URIs. Each resource is
// downloaded to the cache directory on first open.
type HTTPCache struct {
	dir    string
	client *http.Client

	mu sync.Mutex
}

// NewHTTPCache creates a cache under dir, or under the temp directory when
// dir is empty.
func NewHTTPCache(dir string, client *http.Client) (*HTTPCache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "resonate-cache")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCache{dir: dir, client: client}, nil
}

// Open downloads uri unless it is cached and opens the cached copy.
func (c *HTTPCache) Open(uri string) (Source, error) {
	p, err := c.fetch(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached %s: %w", uri, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat cached %s: %w", uri, err)
	}
	return &FileSource{uri: uri, file: f, size: info.Size()}, nil
}

// CachePath returns where uri is stored.
func (c *HTTPCache) CachePath(uri string) string {
	hash := sha256.Sum256([]byte(uri))
	return filepath.Join(c.dir, fmt.Sprintf("%x%s", hash[:8], extension(uri)))
}

func (c *HTTPCache) fetch(uri string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cachePath := c.CachePath(uri)
	if _, err := os.Stat(cachePath); err == nil {
		log.Printf("Cache hit: %s", uri)
		return cachePath, nil
	}

	log.Printf("Downloading %s", uri)
	resp, err := c.client.Get(uri)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", uri, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", uri, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("download of %s failed: HTTP %d", uri, resp.StatusCode)
	}

	// write beside the final name so a failed download never looks cached
	tmp, err := os.CreateTemp(c.dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", uri, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", uri, err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", uri, err)
	}

	log.Printf("Saved %s to %s", uri, cachePath)
	return cachePath, nil
}

// Cleanup removes the cache directory.
func (c *HTTPCache) Cleanup() error {
	return os.RemoveAll(c.dir)
}

// extension returns the file extension of the URL path.
func extension(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
