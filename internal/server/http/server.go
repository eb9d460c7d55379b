package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ballothq/ballot/internal/proposal"
	"github.com/ballothq/ballot/internal/runtime"
	proposalsvc "github.com/ballothq/ballot/internal/services/proposals"
	"github.com/ballothq/ballot/pkg/id"
	logpkg "github.com/ballothq/ballot/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	svc    *proposalsvc.Service
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
	ids    *id.Generator
}

// New builds a server with its own proposals service.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	return NewWithService(rt, proposalsvc.NewWithLogger(rt, logger.With(logpkg.Component("proposals"))), logger)
}

// NewWithService builds a server around an existing service instance so
// transports can share one coordination point.
func NewWithService(rt *runtime.Runtime, svc *proposalsvc.Service, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		svc:    svc,
		logger: logger.With(logpkg.Component("http")),
		ids:    id.NewGenerator(),
	}
	s.srv = &http.Server{Handler: cors(s.accessLog(mux))}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/proposals/get", s.handleGet)
	mux.HandleFunc("/v1/proposals/count", s.handleCount)
	mux.HandleFunc("/v1/proposals/create", s.handleCreate)
	mux.HandleFunc("/v1/proposals/edit", s.handleEdit)
	mux.HandleFunc("/v1/proposals/end", s.handleEnd)
	mux.HandleFunc("/v1/proposals/vote", s.handleVote)
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Ballot-Principal")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			logpkg.Str("request_id", s.ids.Next().String()),
			logpkg.Str("method", r.Method),
			logpkg.Str("path", r.URL.Path),
			logpkg.Int("status", rec.status),
			logpkg.F("elapsed", time.Since(start)),
		)
	})
}

// principal extracts the boundary-authenticated caller identity.
func (s *Server) principal(r *http.Request) (proposal.Principal, bool) {
	v := r.Header.Get(s.rt.Config().PrincipalHeader)
	if v == "" {
		return "", false
	}
	return proposal.Principal(v), true
}

// proposalView is the JSON shape of a stored record.
type proposalView struct {
	Description string   `json:"description"`
	Approve     int32    `json:"approve"`
	Reject      int32    `json:"reject"`
	Pass        int32    `json:"pass"`
	IsActive    bool     `json:"isActive"`
	Voted       []string `json:"voted"`
	Owner       string   `json:"owner"`
}

func viewOf(pr *proposal.Proposal) *proposalView {
	if pr == nil {
		return nil
	}
	voted := make([]string, len(pr.Voted))
	for i, v := range pr.Voted {
		voted[i] = string(v)
	}
	return &proposalView{
		Description: pr.Description,
		Approve:     pr.Approve,
		Reject:      pr.Reject,
		Pass:        pr.Pass,
		IsActive:    pr.IsActive,
		Voted:       voted,
		Owner:       string(pr.Owner),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, proposal.ErrNoSuchProposal):
		status = http.StatusNotFound
	case errors.Is(err, proposal.ErrAccessRejected):
		status = http.StatusForbidden
	case errors.Is(err, proposal.ErrAlreadyVoted), errors.Is(err, proposal.ErrNotActive):
		status = http.StatusConflict
	case errors.Is(err, proposal.ErrRecordTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, proposal.ErrUpdateConflict):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key, err := strconv.ParseUint(r.URL.Query().Get("key"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key must be an unsigned integer"})
		return
	}
	pr, ok, err := s.svc.GetProposal(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": proposal.ErrNoSuchProposal.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposal": viewOf(pr)})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": s.svc.GetProposalCount(r.Context())})
}

type createReq struct {
	Key         uint64 `json:"key"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing principal"})
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	prev, err := s.svc.CreateProposal(r.Context(), caller, req.Key, proposalsvc.CreateParams{
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"replaced": prev != nil,
		"previous": viewOf(prev),
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing principal"})
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.svc.EditProposal(r.Context(), caller, req.Key, proposalsvc.CreateParams{
		Description: req.Description,
		IsActive:    req.IsActive,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type keyReq struct {
	Key uint64 `json:"key"`
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing principal"})
		return
	}
	var req keyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.svc.EndProposal(r.Context(), caller, req.Key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteReq struct {
	Key    uint64 `json:"key"`
	Choice string `json:"choice"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller, ok := s.principal(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing principal"})
		return
	}
	var req voteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	choice, err := proposal.ParseChoice(req.Choice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.svc.Vote(r.Context(), caller, req.Key, choice); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
