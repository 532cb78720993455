// Package rpc exposes the track operations as a typed RPC protocol over a
// single HTTP endpoint: POST /rpc with {"method": ..., "params": ...},
// answered with {"result": ...} or {"error": {"code", "message"}}.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/trailshare/trailshare/internal/models"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeMethodNotFound = "METHOD_NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL"
)

type TrackService interface {
	CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error)
	ListTracks(ctx context.Context) ([]*models.Track, error)
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	UpdateTrack(ctx context.Context, in models.TrackUpdateInput) (*models.Track, error)
	DeleteTrack(ctx context.Context, id int64) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Options struct {
	CORSAllowOrigin string

	RateLimiter     RateLimiter
	RateLimitPerMin int64

	MaxBodyBytes int64

	StaticDir   string
	SwaggerPath string
}

type request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	Result any       `json:"result"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type idParams struct {
	ID int64 `json:"id"`
}

type deleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type healthResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type methodFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Server struct {
	svc     TrackService
	opts    Options
	methods map[string]methodFunc
}

// NewServer builds the method table once; the route registration is static
// configuration, there is no mutable routing state afterwards.
func NewServer(svc TrackService, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 << 20 // raw track text travels in the body
	}
	s := &Server{svc: svc, opts: opts}
	s.methods = map[string]methodFunc{
		"healthcheck": s.healthcheck,
		"createTrack": s.createTrack,
		"getTracks":   s.getTracks,
		"getTrack":    s.getTrack,
		"updateTrack": s.updateTrack,
		"deleteTrack": s.deleteTrack,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware(s.opts.CORSAllowOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResult{Status: "ok", Timestamp: time.Now().UTC()})
	})

	endpoint := r.With()
	if s.opts.RateLimiter != nil && s.opts.RateLimitPerMin > 0 {
		endpoint = r.With(rateLimitMiddleware(s.opts.RateLimiter, s.opts.RateLimitPerMin))
	}
	endpoint.Post("/rpc", s.handleRPC)
	endpoint.Options("/rpc", func(w http.ResponseWriter, r *http.Request) {})

	if s.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, s.opts.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(s.opts.SwaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}

	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "malformed request body")
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
		return
	}

	result, err := m(r.Context(), req.Params)
	if err != nil {
		slog.Error("rpc call failed", "method", req.Method, "err", err)

		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, CodeValidation, verr.Error())
			return
		}
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, CodeNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, response{Result: result})
}

func (s *Server) healthcheck(ctx context.Context, _ json.RawMessage) (any, error) {
	return healthResult{Status: "ok", Timestamp: time.Now().UTC()}, nil
}

func (s *Server) createTrack(ctx context.Context, params json.RawMessage) (any, error) {
	var in models.TrackCreateInput
	if err := unmarshalParams(params, &in); err != nil {
		return nil, err
	}
	return s.svc.CreateTrack(ctx, in)
}

func (s *Server) getTracks(ctx context.Context, _ json.RawMessage) (any, error) {
	ts, err := s.svc.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		ts = []*models.Track{}
	}
	return ts, nil
}

// getTrack answers null for an absent id: absence is not an error here.
func (s *Server) getTrack(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	t, err := s.svc.GetTrack(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return t, nil
}

// updateTrack follows the same null-on-absence contract as getTrack.
func (s *Server) updateTrack(ctx context.Context, params json.RawMessage) (any, error) {
	var in models.TrackUpdateInput
	if err := unmarshalParams(params, &in); err != nil {
		return nil, err
	}
	t, err := s.svc.UpdateTrack(ctx, in)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return t, nil
}

// deleteTrack rejects an absent id with NOT_FOUND instead of returning a
// sentinel. The asymmetry with getTrack/updateTrack is contractual.
func (s *Server) deleteTrack(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.svc.DeleteTrack(ctx, p.ID); err != nil {
		return nil, err
	}
	return deleteResult{Success: true, Message: fmt.Sprintf("track %d deleted", p.ID)}, nil
}

func unmarshalParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return &models.ValidationError{Field: "params", Reason: "are required"}
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return &models.ValidationError{Field: "params", Reason: "malformed JSON"}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, response{Error: &rpcError{Code: code, Message: msg}})
}
