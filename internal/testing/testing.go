// package testing contains shared testing utilities
package testing

import (
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    atomic.Int32
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// Calls returns how many requests went through the round tripper.
func (m *MockRoundTripper) Calls() int {
	return int(m.calls.Load())
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// HitCounter wraps a handler and counts requests per path.
type HitCounter struct {
	next http.Handler
	hits map[string]*atomic.Int32
}

// NewHitCounter counts requests for the given paths; other paths pass through uncounted.
func NewHitCounter(next http.Handler, paths ...string) *HitCounter {
	hits := make(map[string]*atomic.Int32, len(paths))
	for _, p := range paths {
		hits[p] = &atomic.Int32{}
	}
	return &HitCounter{next: next, hits: hits}
}

func (h *HitCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c, ok := h.hits[r.URL.Path]; ok {
		c.Add(1)
	}
	h.next.ServeHTTP(w, r)
}

// Hits returns the request count for path.
func (h *HitCounter) Hits(path string) int {
	if c, ok := h.hits[path]; ok {
		return int(c.Load())
	}
	return 0
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
