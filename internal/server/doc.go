// Package server exposes the book lists and the Calil session over a small JSON HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so "GET /api/lists/{type}" and
// path values work without a third-party router.
//
// # Middleware
//
// [RequestID] tags every request with an id (X-Request-ID, echoed back), [RequestLogger] logs method, path,
// status and duration, and [Recoverer] turns handler panics into 500s.
//
// # Routes
//
//	GET    /api/session              session status (never logs in)
//	POST   /api/session/refresh      force a browser login
//	DELETE /api/session              forget the stored session
//	GET    /api/lists/{type}/count   number of books in a list
//	GET    /api/lists/{type}?page=N  one page of a list
//	GET    /api/books/{isbn}         bibliographic record (cached, then NDL)
//	GET    /covers/{isbn}            cover thumbnail (also /api/books/{isbn}/cover)
//	GET    /health                   liveness
//
// # Handler Interface
//
// A [Handler] carries its own route patterns, so one handler can be mounted under several paths.
// The cover endpoint is registered this way.
package server
