package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/bookx/internal/shared"
)

const ndlFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" version="2.0">
<channel>
<title>9784101010137 - 国立国会図書館サーチ OpenSearch</title>
<link>https://ndlsearch.ndl.go.jp/api/opensearch?isbn=9784101010137</link>
<item>
<title>こころ</title>
<link>https://ndlsearch.ndl.go.jp/books/R100000002-I000000123456</link>
<guid isPermaLink="true">https://ndlsearch.ndl.go.jp/books/R100000002-I000000123456</guid>
<author>夏目漱石 著</author>
<dc:creator>夏目, 漱石, 1867-1916</dc:creator>
<dc:publisher>新潮社</dc:publisher>
<dcterms:issued>2004</dcterms:issued>
<dc:subject>日本文学</dc:subject>
<dc:subject>小説</dc:subject>
</item>
</channel>
</rss>`

const ndlEmptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>none</title></channel></rss>`

func newNDLServer(t *testing.T, handler http.HandlerFunc) *NDLService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewNDLService(shared.NDLConfig{BaseURL: server.URL}, server.Client(), testLogger())
}

func TestNDLService(t *testing.T) {
	t.Run("LookupISBN", func(t *testing.T) {
		t.Run("Parses The First Item", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/opensearch" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("isbn"); got != "9784101010137" {
					t.Errorf("expected normalized isbn, got %q", got)
				}
				io.WriteString(w, ndlFeed)
			})

			b, err := svc.LookupISBN(context.Background(), "978-4-10-101013-7")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if b.Title != "こころ" {
				t.Errorf("expected title こころ, got %q", b.Title)
			}
			if b.Creator != "夏目, 漱石, 1867-1916" {
				t.Errorf("unexpected creator %q", b.Creator)
			}
			if b.Publisher != "新潮社" || b.Issued != "2004" {
				t.Errorf("unexpected publisher/issued %q %q", b.Publisher, b.Issued)
			}
			if len(b.Subjects) != 2 {
				t.Errorf("expected 2 subjects, got %v", b.Subjects)
			}
			if b.Link != "https://ndlsearch.ndl.go.jp/books/R100000002-I000000123456" {
				t.Errorf("unexpected link %q", b.Link)
			}
			if b.ISBN != "9784101010137" || b.FetchedAt.IsZero() {
				t.Errorf("unexpected isbn/fetched_at %q %v", b.ISBN, b.FetchedAt)
			}
		})

		t.Run("No Items", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, ndlEmptyFeed)
			})

			if _, err := svc.LookupISBN(context.Background(), "9784101010137"); !errors.Is(err, shared.ErrBookNotFound) {
				t.Errorf("expected ErrBookNotFound, got %v", err)
			}
		})

		t.Run("Invalid ISBN", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			if _, err := svc.LookupISBN(context.Background(), "12345"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Server Error", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			if _, err := svc.LookupISBN(context.Background(), "9784101010137"); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("Thumbnail", func(t *testing.T) {
		t.Run("Downloads Image", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/thumbnail/9784101010137.jpg" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Write([]byte{0xff, 0xd8, 0xff})
			})

			data, err := svc.Thumbnail(context.Background(), "978-4-10-101013-7")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(data) != 3 {
				t.Errorf("expected 3 bytes, got %d", len(data))
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			})

			if _, err := svc.Thumbnail(context.Background(), "9784101010137"); !errors.Is(err, shared.ErrBookNotFound) {
				t.Errorf("expected ErrBookNotFound, got %v", err)
			}
		})

		t.Run("Accepts Maximum Size", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write(make([]byte, maxThumbnailSize))
			})

			data, err := svc.Thumbnail(context.Background(), "9784101010137")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(data) != maxThumbnailSize {
				t.Errorf("expected %d bytes, got %d", maxThumbnailSize, len(data))
			}
		})

		t.Run("Rejects Oversized Image", func(t *testing.T) {
			svc := newNDLServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write(make([]byte, maxThumbnailSize+1<<20))
			})

			data, err := svc.Thumbnail(context.Background(), "9784101010137")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if data != nil {
				t.Errorf("expected no data, got %d bytes", len(data))
			}
		})
	})

	t.Run("Rate Limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, ndlFeed)
		}))
		defer server.Close()
		svc := NewNDLService(shared.NDLConfig{BaseURL: server.URL, RateLimit: 10}, server.Client(), testLogger())

		start := time.Now()
		for range 3 {
			if _, err := svc.LookupISBN(context.Background(), "9784101010137"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("expected requests to be paced, took %s", elapsed)
		}
	})
}
