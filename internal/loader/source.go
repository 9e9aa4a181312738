package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Source yields the raw collection document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// StatusError is returned by HTTPSource for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status=%d", e.URL, e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: s.URL, Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPSource) String() string { return s.URL }

// FileSource reads the collection from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

func (s *FileSource) String() string { return s.Path }

// NewSource picks an HTTPSource for http(s) locations and a FileSource
// for everything else. A file:// prefix is stripped.
func NewSource(location string, client *http.Client) (Source, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("collection location is empty")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &HTTPSource{URL: location, Client: client}, nil
	case strings.HasPrefix(location, "file://"):
		return &FileSource{Path: strings.TrimPrefix(location, "file://")}, nil
	default:
		return &FileSource{Path: location}, nil
	}
}
