// Package httpapi exposes the library system over HTTP/JSON. Routing uses
// the method-and-pattern mux from the standard library; serialization is
// jsoniter; lending operations go through the feature command handlers, the
// catalog CRUD talks to the store directly.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/features/command/borrowbook"
	"github.com/libris-io/libris/internal/features/command/cancelreservation"
	"github.com/libris-io/libris/internal/features/command/reservebook"
	"github.com/libris-io/libris/internal/features/command/returnbook"
	"github.com/libris-io/libris/internal/features/query/borrowinghistory"
	"github.com/libris-io/libris/internal/features/query/reservationsbyuser"
	"github.com/libris-io/libris/internal/obs"
	"github.com/libris-io/libris/libstore"
)

// Store is the union of persistence operations the HTTP layer needs. The
// Postgres engine and the in-memory store both satisfy it.
type Store interface {
	borrowbook.Store
	returnbook.Store
	reservebook.Store
	cancelreservation.Store
	borrowinghistory.Store
	reservationsbyuser.Store

	InsertUser(ctx context.Context, user libstore.User) error
	FindUserByEmail(ctx context.Context, email string) (*libstore.User, error)
	ListUsers(ctx context.Context, page libstore.Page) ([]libstore.User, error)
	UpdateUser(ctx context.Context, user libstore.User) (*libstore.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (bool, error)

	InsertBook(ctx context.Context, book libstore.Book) error
	ListBooks(ctx context.Context, page libstore.Page) ([]libstore.Book, error)
	UpdateBook(ctx context.Context, book libstore.Book) (*libstore.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) (bool, error)

	ListBorrows(ctx context.Context, page libstore.Page) ([]libstore.Borrow, error)
	DeleteBorrow(ctx context.Context, id uuid.UUID) (bool, error)
	ListReservations(ctx context.Context, page libstore.Page) ([]libstore.Reservation, error)
	FindReservationByID(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error)

	InsertCategory(ctx context.Context, category libstore.Category) error
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*libstore.Category, error)
	ListCategories(ctx context.Context) ([]libstore.Category, error)
	UpdateCategory(ctx context.Context, category libstore.Category) (*libstore.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (bool, error)

	InsertGenre(ctx context.Context, genre libstore.Genre) error
	FindGenreByID(ctx context.Context, id uuid.UUID) (*libstore.Genre, error)
	ListGenres(ctx context.Context) ([]libstore.Genre, error)
	UpdateGenre(ctx context.Context, genre libstore.Genre) (*libstore.Genre, error)
	DeleteGenre(ctx context.Context, id uuid.UUID) (bool, error)

	InsertReview(ctx context.Context, review libstore.Review) error
	FindReviewByID(ctx context.Context, id uuid.UUID) (*libstore.Review, error)
	ListReviewsByBook(ctx context.Context, bookID uuid.UUID, page libstore.Page) ([]libstore.Review, error)
	UpdateReview(ctx context.Context, review libstore.Review) (*libstore.Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID) (bool, error)
}

// Server carries the wired handlers and exposes the HTTP routes.
type Server struct {
	store   Store
	logger  libstore.ContextualLogger
	metrics *obs.Metrics
	policy  *core.LendingPolicy

	borrowHandler  borrowbook.CommandHandler
	returnHandler  returnbook.CommandHandler
	reserveHandler reservebook.CommandHandler
	cancelHandler  cancelreservation.CommandHandler

	historyHandler      borrowinghistory.QueryHandler
	reservationsHandler reservationsbyuser.QueryHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger libstore.ContextualLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the service metrics.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithPolicy sets the lending policy on all command handlers.
func WithPolicy(policy core.LendingPolicy) Option {
	return func(s *Server) {
		s.policy = &policy
	}
}

// NewServer wires the feature handlers onto the store. Handler construction
// runs after the options so the policy and logger reach every handler.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{store: store}

	for _, opt := range opts {
		opt(s)
	}

	var borrowOpts []borrowbook.Option
	var returnOpts []returnbook.Option
	var reserveOpts []reservebook.Option

	if s.policy != nil {
		borrowOpts = append(borrowOpts, borrowbook.WithPolicy(*s.policy))
		returnOpts = append(returnOpts, returnbook.WithPolicy(*s.policy))
		reserveOpts = append(reserveOpts, reservebook.WithPolicy(*s.policy))
	}

	if s.logger != nil {
		returnOpts = append(returnOpts, returnbook.WithLogger(s.logger))
	}

	s.borrowHandler = borrowbook.NewCommandHandler(store, borrowOpts...)
	s.returnHandler = returnbook.NewCommandHandler(store, returnOpts...)
	s.reserveHandler = reservebook.NewCommandHandler(store, reserveOpts...)
	s.cancelHandler = cancelreservation.NewCommandHandler(store)
	s.historyHandler = borrowinghistory.NewQueryHandler(store)
	s.reservationsHandler = reservationsbyuser.NewQueryHandler(store)

	return s
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/users", s.handleCreateUser)
	mux.HandleFunc("GET /v1/users", s.handleListUsers)
	mux.HandleFunc("GET /v1/users/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /v1/users/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /v1/users/{id}", s.handleDeleteUser)
	mux.HandleFunc("GET /v1/users/{id}/borrowings", s.handleBorrowingHistory)
	mux.HandleFunc("GET /v1/users/{id}/reservations", s.handleReservationsByUser)

	mux.HandleFunc("POST /v1/books", s.handleCreateBook)
	mux.HandleFunc("GET /v1/books", s.handleListBooks)
	mux.HandleFunc("GET /v1/books/{id}", s.handleGetBook)
	mux.HandleFunc("PUT /v1/books/{id}", s.handleUpdateBook)
	mux.HandleFunc("DELETE /v1/books/{id}", s.handleDeleteBook)

	mux.HandleFunc("POST /v1/books/{id}/borrow", s.handleBorrow)
	mux.HandleFunc("POST /v1/borrowings/{id}/return", s.handleReturn)
	mux.HandleFunc("GET /v1/borrowings", s.handleListBorrows)
	mux.HandleFunc("GET /v1/borrowings/{id}", s.handleGetBorrow)
	mux.HandleFunc("DELETE /v1/borrowings/{id}", s.handleDeleteBorrow)

	mux.HandleFunc("POST /v1/books/{id}/reserve", s.handleReserve)
	mux.HandleFunc("POST /v1/reservations/{id}/cancel", s.handleCancelReservation)
	mux.HandleFunc("GET /v1/reservations", s.handleListReservations)
	mux.HandleFunc("GET /v1/reservations/{id}", s.handleGetReservation)
	mux.HandleFunc("PATCH /v1/reservations/{id}", s.handlePatchReservation)

	mux.HandleFunc("POST /v1/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /v1/categories", s.handleListCategories)
	mux.HandleFunc("GET /v1/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /v1/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /v1/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("POST /v1/genres", s.handleCreateGenre)
	mux.HandleFunc("GET /v1/genres", s.handleListGenres)
	mux.HandleFunc("GET /v1/genres/{id}", s.handleGetGenre)
	mux.HandleFunc("PUT /v1/genres/{id}", s.handleUpdateGenre)
	mux.HandleFunc("DELETE /v1/genres/{id}", s.handleDeleteGenre)

	mux.HandleFunc("POST /v1/books/{id}/reviews", s.handleCreateReview)
	mux.HandleFunc("GET /v1/books/{id}/reviews", s.handleListReviews)
	mux.HandleFunc("PUT /v1/reviews/{id}", s.handleUpdateReview)
	mux.HandleFunc("DELETE /v1/reviews/{id}", s.handleDeleteReview)

	return s.withRequestID(s.withObservability(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestIDKey is the context key for the per-request correlation ID.
type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		route := r.URL.Path

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
			s.metrics.RequestSeconds.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		}

		if s.logger != nil {
			s.logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", route,
				"status", recorder.status,
				"duration_ms", duration.Milliseconds(),
				"request_id", r.Context().Value(requestIDKey{}),
			)
		}
	})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, core.ErrInvalidID
	}

	return id, nil
}

// pageFrom reads limit/offset query parameters; defaults come from
// Page.Normalize in the store.
func pageFrom(r *http.Request) libstore.Page {
	var page libstore.Page

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		page.Limit = limit
	}

	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		page.Offset = offset
	}

	return page
}
