package doxygen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcdickinson/doxnav/internal/config"
)

// ErrNotFound is returned by a Source when a file does not exist.
var ErrNotFound = errors.New("file not found")

// maxFileSize bounds a single fetched file.
const maxFileSize = 64 << 20

// Source reads files of a Doxygen HTML output tree by relative path.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	String() string
}

// Lister is implemented by sources that can enumerate files, letting the
// loader find search fragments without search/searchdata.js.
type Lister interface {
	Glob(pattern string) ([]string, error)
}

// OpenSource returns an HTTPSource for http(s) URLs and a DirSource
// otherwise.
func OpenSource(location string, cfg config.FetchConfig) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, cfg), nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", location, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening docset %s: %w", location, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docset %s is not a directory", location)
	}
	return DirSource(abs), nil
}

// DirSource reads from a local directory.
type DirSource string

func (d DirSource) String() string { return string(d) }

func (d DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Glob returns slash-separated paths relative to the directory.
func (d DirSource) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(string(d), filepath.FromSlash(pattern)))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(string(d), m)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

// resolve rejects names that would escape the directory.
func (d DirSource) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "./") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(string(d), filepath.FromSlash(clean)), nil
}

// HTTPSource reads from a published documentation site.
type HTTPSource struct {
	BaseURL   string
	UserAgent string
	Token     string
	Client    *http.Client
}

func NewHTTPSource(baseURL string, cfg config.FetchConfig) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSource{
		BaseURL:   strings.TrimSuffix(baseURL, "/") + "/",
		UserAgent: cfg.UserAgent,
		Token:     cfg.Token.Value,
		Client:    &http.Client{Timeout: timeout},
	}
}

func (h *HTTPSource) String() string { return h.BaseURL }

func (h *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	url := h.BaseURL + strings.TrimPrefix(name, "/")

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", url, maxFileSize)
	}
	return data, nil
}
