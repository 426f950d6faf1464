// Package store resolves content references (notation text, samples,
// backing tracks) to bytes.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotFound = errors.New("store: reference not found")

// MaxSize bounds a single fetched object.
const MaxSize = 64 << 20

// Resolver fetches file://, bare path and http(s):// references. Relative
// paths are resolved against Root.
type Resolver struct {
	Root   string
	Client *http.Client
}

func NewResolver(root string) *Resolver {
	return &Resolver{
		Root:   root,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("store: empty reference: %w", ErrNotFound)
	}
	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return r.fetchHTTP(ctx, ref)
		case "file":
			return r.readFile(u.Path)
		}
	}
	return r.readFile(ref)
}

func (r *Resolver) readFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) && r.Root != "" {
		path = filepath.Join(r.Root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store: %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()
	return readLimited(f)
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("store: request %s: %w", ref, err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("store: %s: %w", ref, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store: get %s: status %d", ref, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readLimited(rd io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("store: read: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("store: object larger than %d bytes", MaxSize)
	}
	return data, nil
}
