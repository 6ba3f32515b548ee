// Package httpapi exposes the guard over HTTP for chat bots and agents.
//
// Each request names its caller with the X-Channel and X-Principal
// headers. Confirmation always uses challenges: a gated request answers
// 202 with the challenge and the caller completes it on /v1/reply.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/sandbox"
)

const (
	HeaderChannel   = "X-Channel"
	HeaderPrincipal = "X-Principal"

	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 2 << 20
	// DefaultChallengeTTL is how long an unanswered challenge is kept.
	DefaultChallengeTTL = 5 * time.Minute
	// DefaultMaxExecTimeout caps the timeout a caller may ask for.
	DefaultMaxExecTimeout = sandbox.DefaultTimeout
)

// Guard is the part of the guard the API serves
type Guard interface {
	RequestRead(ctx context.Context, principal, path string) guard.Outcome
	RequestList(ctx context.Context, principal, path string) guard.Outcome
	RequestWrite(ctx context.Context, principal, path, content string, opts guard.RequestOptions) guard.Outcome
	RequestDelete(ctx context.Context, principal, path string, opts guard.RequestOptions) guard.Outcome
	RequestExecute(ctx context.Context, principal, code string, opts guard.RequestOptions) guard.Outcome
	Reply(ctx context.Context, principal, reply string) guard.Outcome
	HasPending(principal string) bool
	Remaining(principal string) int
	ResetAt(principal string) time.Time
	ExpirePending(ctx context.Context, olderThan time.Duration) int
}

// Options configure the server.
type Options struct {
	MaxBodyBytes int64
	ChallengeTTL time.Duration
	// MaxExecTimeout is the longest evaluation a caller may request.
	MaxExecTimeout time.Duration
}

// Server serves guard requests.
type Server struct {
	guard  Guard
	logger *slog.Logger
	opts   Options
}

// New creates a server.
func New(g Guard, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = DefaultChallengeTTL
	}
	if opts.MaxExecTimeout <= 0 {
		opts.MaxExecTimeout = DefaultMaxExecTimeout
	}
	return &Server{guard: g, logger: logger, opts: opts}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requirePrincipal)
		r.Post("/read", s.handleRead)
		r.Post("/list", s.handleList)
		r.Post("/write", s.handleWrite)
		r.Post("/delete", s.handleDelete)
		r.Post("/execute", s.handleExecute)
		r.Post("/reply", s.handleReply)
		r.Get("/limits", s.handleLimits)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, expiring stale
// challenges in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.RunExpiry(ctx, s.opts.ChallengeTTL/2)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http api: %w", err)
		}
		return nil
	}
}

// RunExpiry cancels challenges older than the TTL every interval until ctx is done.
func (s *Server) RunExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.guard.ExpirePending(ctx, s.opts.ChallengeTTL); n > 0 {
				s.logger.Info("expired pending challenges", "count", n)
			}
		}
	}
}

type principalKey struct{}

func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderPrincipal)
		if id == "" {
			writeError(w, http.StatusUnauthorized, HeaderPrincipal+" header is required")
			return
		}
		principal := guard.PrincipalFor(r.Header.Get(HeaderChannel), id)
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// statusFor maps an outcome to an HTTP status.
func statusFor(o guard.Outcome) int {
	if o.OK {
		return http.StatusOK
	}
	if o.Failure == nil {
		return http.StatusInternalServerError
	}
	switch o.Failure.Kind {
	case guard.ConfirmationRequired:
		return http.StatusAccepted
	case guard.RateLimited:
		return http.StatusTooManyRequests
	case guard.PathBlocked, guard.SensitiveDataBlocked, guard.DangerousCodeBlocked:
		return http.StatusForbidden
	case guard.ConfirmationDenied:
		return http.StatusConflict
	case guard.ExecutionTimeout, guard.ExecutionRuntimeError, guard.IOFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, o guard.Outcome) {
	status := statusFor(o)
	if status == http.StatusTooManyRequests && o.Failure.ResetAt != nil {
		if wait := time.Until(*o.Failure.ResetAt); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
	}
	attrs := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"action", o.Action,
		"ok", o.OK,
	}
	if o.Failure != nil {
		attrs = append(attrs, "failure", o.Failure.Kind)
	}
	s.logger.InfoContext(r.Context(), "guard request", attrs...)
	writeJSON(w, status, o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v, answering 400 or 413 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
