package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type healthBody struct {
	Status string `json:"status"`
}

type countBody struct {
	ListType models.ListType `json:"list_type"`
	Count    int             `json:"count"`
}

type pageBody struct {
	ListType models.ListType `json:"list_type"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	Books    []models.Book   `json:"books"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, RequestID: RequestIDFrom(r.Context())})
}

// statusFor maps the sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidListType),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrSessionExpired),
		errors.Is(err, shared.ErrLoginTimeout):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrLaunchFailed),
		errors.Is(err, shared.ErrBrowserClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrAPIRequest),
		errors.Is(err, shared.ErrTokenExpired):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	failWith(s.logger, w, r, err)
}

// failWith writes err with its mapped status; server-side failures are logged.
func failWith(logger *log.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error("request failed", "id", RequestIDFrom(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Status: "ok"})
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Session.Status(r.Context()))
}

func (s *Server) sessionRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Session.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.Status(r.Context()))
}

func (s *Server) sessionLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCount(w http.ResponseWriter, r *http.Request) {
	lt, err := models.ParseListType(r.PathValue("type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.deps.Lists.Count(r.Context(), lt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countBody{ListType: lt, Count: n})
}

func (s *Server) listPage(w http.ResponseWriter, r *http.Request) {
	lt, err := models.ParseListType(r.PathValue("type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, http.StatusBadRequest, "page must be a number")
			return
		}
	}

	books, err := s.deps.Lists.Page(r.Context(), lt, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, http.StatusOK, pageBody{ListType: lt, Page: page, PerPage: s.deps.Lists.PageSize(), Books: books})
}

// book answers from the bibliography cache and falls back to an NDL lookup, caching the result.
func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	isbn := shared.NormalizeISBN(r.PathValue("isbn"))
	if isbn == "" {
		writeError(w, r, http.StatusBadRequest, "invalid isbn")
		return
	}

	if s.deps.Bibliographies != nil {
		if bib, err := s.deps.Bibliographies.Get(isbn); err == nil {
			writeJSON(w, http.StatusOK, bib)
			return
		} else if !errors.Is(err, shared.ErrBookNotFound) {
			s.fail(w, r, err)
			return
		}
	}

	if s.deps.Catalogue == nil {
		writeError(w, r, http.StatusNotFound, "book not found")
		return
	}

	bib, err := s.deps.Catalogue.LookupISBN(r.Context(), isbn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.deps.Bibliographies != nil {
		if err := s.deps.Bibliographies.Put(*bib); err != nil {
			s.logger.Warn("failed to cache bibliography", "isbn", isbn, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, bib)
}
