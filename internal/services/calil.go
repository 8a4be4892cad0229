// Calil list endpoints
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
	"golang.org/x/oauth2"
)

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type listRequest struct {
	ListType models.ListType `json:"list_type"`
	Page     int             `json:"page,omitempty"`
	PerPage  int             `json:"per_page,omitempty"`
}

type listMetaResponse struct {
	Total int `json:"total"`
}

// CalilBook is one entry in a list page response.
type CalilBook struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	Cover     string `json:"cover"`
	CreatedAt string `json:"created_at"`
}

type listPageResponse struct {
	Books []CalilBook `json:"books"`
}

// CalilService talks to the Calil token and list endpoints. It implements [session.TokenSource] and [ListSource].
type CalilService struct {
	api      *APIService
	config   shared.CalilConfig
	pageSize int
	logger   *log.Logger
}

// NewCalilService creates a CalilService for the configured site.
func NewCalilService(config shared.CalilConfig, client *http.Client, logger *log.Logger) *CalilService {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return &CalilService{
		api:      NewAPIService(config.BaseURL, client),
		config:   config,
		pageSize: pageSize,
		logger:   shared.WithLogger(logger, "component", "calil"),
	}
}

// API returns the underlying raw client.
func (s *CalilService) API() *APIService {
	return s.api
}

// PageSize reports how many books one list page holds.
func (s *CalilService) PageSize() int {
	return s.pageSize
}

// FetchToken mints an access token using only the session cookie.
//
// Any refusal from the token endpoint means the session itself is no longer accepted.
func (s *CalilService) FetchToken(ctx context.Context, cookie string) (*oauth2.Token, error) {
	resp, err := s.api.Get(ctx, s.config.TokenPath, session.Credentials{Cookie: cookie})
	if err != nil {
		return nil, err
	}

	if code := resp.StatusCode; code == http.StatusUnauthorized || code == http.StatusForbidden {
		return nil, fmt.Errorf("%w: token endpoint returned %d", shared.ErrSessionExpired, code)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var body tokenResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	access := body.AccessToken
	if access == "" {
		access = body.Token
	}
	if access == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no token", shared.ErrSessionExpired)
	}

	t := &oauth2.Token{AccessToken: access, TokenType: body.TokenType}
	if body.ExpiresIn > 0 {
		t.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return t, nil
}

// ListMeta returns how many books the list holds.
func (s *CalilService) ListMeta(ctx context.Context, creds session.Credentials, listType models.ListType) (int, error) {
	resp, err := s.api.PostJSON(ctx, s.config.ListMetaPath, listRequest{ListType: listType}, creds)
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}

	var meta listMetaResponse
	if err := resp.Decode(&meta); err != nil {
		return 0, err
	}
	return meta.Total, nil
}

// ListPage returns one page (1-based) of the list.
func (s *CalilService) ListPage(ctx context.Context, creds session.Credentials, listType models.ListType, page int) ([]models.Book, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", shared.ErrInvalidArgument, page)
	}

	req := listRequest{ListType: listType, Page: page, PerPage: s.pageSize}
	resp, err := s.api.PostJSON(ctx, s.config.ListPath, req, creds)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var body listPageResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	books := make([]models.Book, 0, len(body.Books))
	offset := (page - 1) * s.pageSize
	for i, cb := range body.Books {
		books = append(books, cb.toBook(offset+i+1))
	}
	return books, nil
}

func (cb CalilBook) toBook(position int) models.Book {
	b := models.Book{
		ISBN:      shared.NormalizeISBN(cb.ISBN),
		Title:     strings.TrimSpace(cb.Title),
		Author:    strings.TrimSpace(cb.Author),
		Publisher: strings.TrimSpace(cb.Publisher),
		CoverURL:  cb.Cover,
		Position:  position,
	}
	if b.ISBN == "" {
		b.ISBN = strings.TrimSpace(cb.ISBN)
	}
	if cb.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, cb.CreatedAt); err == nil {
			b.AddedAt = t
		}
	}
	return b
}
