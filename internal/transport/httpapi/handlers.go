package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
)

// PathRequest is the body of read, list and delete requests.
type PathRequest struct {
	Path             string `json:"path"`
	SkipConfirmation bool   `json:"skip_confirmation,omitempty"`
}

// WriteRequest is the body of write requests.
type WriteRequest struct {
	Path             string `json:"path"`
	Content          string `json:"content"`
	SkipConfirmation bool   `json:"skip_confirmation,omitempty"`
}

// ExecuteRequest is the body of execute requests.
type ExecuteRequest struct {
	Code             string `json:"code"`
	TimeoutMs        int    `json:"timeout_ms,omitempty"`
	SkipConfirmation bool   `json:"skip_confirmation,omitempty"`
}

// ReplyRequest answers a pending challenge.
type ReplyRequest struct {
	Reply string `json:"reply"`
}

// LimitsResponse reports a principal's execution quota.
type LimitsResponse struct {
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Pending   bool       `json:"pending"`
}

func requestOptions(skip bool) guard.RequestOptions {
	return guard.RequestOptions{SkipConfirmation: skip, ChannelIsAsync: true}
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.writeOutcome(w, r, s.guard.RequestRead(r.Context(), principalFrom(r.Context()), req.Path))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.writeOutcome(w, r, s.guard.RequestList(r.Context(), principalFrom(r.Context()), req.Path))
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	o := s.guard.RequestWrite(r.Context(), principalFrom(r.Context()), req.Path, req.Content, requestOptions(req.SkipConfirmation))
	s.writeOutcome(w, r, o)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	o := s.guard.RequestDelete(r.Context(), principalFrom(r.Context()), req.Path, requestOptions(req.SkipConfirmation))
	s.writeOutcome(w, r, o)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.TimeoutMs < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative")
		return
	}
	opts := requestOptions(req.SkipConfirmation)
	opts.Timeout = s.execTimeout(req.TimeoutMs)
	s.writeOutcome(w, r, s.guard.RequestExecute(r.Context(), principalFrom(r.Context()), req.Code, opts))
}

// execTimeout turns a requested timeout into one no longer than the
// configured maximum. Zero keeps the guard's default.
func (s *Server) execTimeout(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	d := time.Duration(ms) * time.Millisecond
	if d > s.opts.MaxExecTimeout {
		return s.opts.MaxExecTimeout
	}
	return d
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if !decode(w, r, &req) {
		return
	}
	s.writeOutcome(w, r, s.guard.Reply(r.Context(), principalFrom(r.Context()), req.Reply))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	resp := LimitsResponse{
		Remaining: s.guard.Remaining(principal),
		Pending:   s.guard.HasPending(principal),
	}
	if resp.Remaining == 0 {
		reset := s.guard.ResetAt(principal).UTC()
		resp.ResetAt = &reset
	}
	writeJSON(w, http.StatusOK, resp)
}
