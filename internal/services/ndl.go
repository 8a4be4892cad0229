// National Diet Library OpenSearch lookups
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	ndlOpenSearchPath = "/api/opensearch"
	ndlThumbnailPath  = "/thumbnail/"
	maxThumbnailSize  = 5 << 20
)

// NDLService looks books up in the NDL catalogue. Requests share one rate limiter.
type NDLService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewNDLService creates an NDLService. A non-positive requests-per-second disables pacing.
func NewNDLService(config shared.NDLConfig, client *http.Client, logger *log.Logger) *NDLService {
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://ndlsearch.ndl.go.jp"
	}

	return &NDLService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(logger, "component", "ndl"),
	}
}

// LookupISBN returns the first catalogue record for isbn.
func (s *NDLService) LookupISBN(ctx context.Context, isbn string) (*models.Bibliography, error) {
	normalized := shared.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, fmt.Errorf("%w: isbn %q", shared.ErrInvalidInput, isbn)
	}

	q := url.Values{"isbn": {normalized}, "cnt": {"1"}}
	resp, err := s.get(ctx, ndlOpenSearchPath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OpenSearch response: %v", shared.ErrAPIRequest, err)
	}

	item := doc.Find("item").First()
	if item.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrBookNotFound, normalized)
	}

	b := parseItem(item)
	b.ISBN = normalized
	b.FetchedAt = time.Now().UTC()
	s.logger.Debug("looked up isbn", "isbn", normalized, "title", b.Title)
	return b, nil
}

// Thumbnail downloads the cover thumbnail for isbn.
func (s *NDLService) Thumbnail(ctx context.Context, isbn string) ([]byte, error) {
	normalized := shared.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, fmt.Errorf("%w: isbn %q", shared.ErrInvalidInput, isbn)
	}

	resp, err := s.get(ctx, ndlThumbnailPath+normalized+".jpg")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) > maxThumbnailSize {
		return nil, fmt.Errorf("%w: thumbnail too large (over %d bytes)", shared.ErrAPIRequest, maxThumbnailSize)
	}
	return data, nil
}

func (s *NDLService) get(ctx context.Context, path string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return resp, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusNotFound:
		return shared.ErrBookNotFound
	case code >= 500:
		return fmt.Errorf("%w: ndl returned %d", shared.ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("%w: ndl returned %d", shared.ErrAPIRequest, code)
	}
}

// parseItem reads one RSS item. The document goes through the HTML parser, so namespaced
// elements keep their prefix and <link> is a void element followed by its text.
func parseItem(item *goquery.Selection) *models.Bibliography {
	text := func(sel string) string {
		return strings.Join(strings.Fields(item.Find(sel).First().Text()), " ")
	}

	b := &models.Bibliography{
		Title:     text("title"),
		Creator:   text(`dc\:creator`),
		Publisher: text(`dc\:publisher`),
		Issued:    text(`dcterms\:issued`),
		Link:      text("guid"),
	}
	if b.Creator == "" {
		b.Creator = text("author")
	}
	if b.Link == "" {
		b.Link = linkText(item.Find("link").First())
	}

	item.Find(`dc\:subject`).Each(func(_ int, s *goquery.Selection) {
		if subject := strings.TrimSpace(s.Text()); subject != "" {
			b.Subjects = append(b.Subjects, subject)
		}
	})
	return b
}

func linkText(link *goquery.Selection) string {
	if link.Length() == 0 {
		return ""
	}
	if t := strings.TrimSpace(link.Text()); t != "" {
		return t
	}
	if next := link.Nodes[0].NextSibling; next != nil && next.Type == html.TextNode {
		return strings.TrimSpace(next.Data)
	}
	return ""
}
