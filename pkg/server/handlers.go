package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/masonry/pkg/buildinfo"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/observability"
	"github.com/matzehuels/masonry/pkg/pipeline"
)

type healthResponse struct {
	Status   string         `json:"status"`
	Build    buildinfo.Info `json:"build"`
	Sessions int            `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Build:    buildinfo.Get(),
		Sessions: s.Sessions(),
	})
}

// layoutRequest is the body of POST /v1/layout and POST /v1/window.
// Unset layout constants fall back to the server's configuration. Width and
// viewport_height are used as given: omitted or 0 means 0, and a negative
// width balances like 0 into a single column.
type layoutRequest struct {
	Photos []masonry.Photo `json:"photos"`
	pipeline.Options

	// Buffer shadows Options.Buffer so an explicit 0 can be told apart
	// from an omitted field.
	Buffer *int `json:"buffer,omitempty"`
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (layoutRequest, pipeline.Options, error) {
	var req layoutRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return req, pipeline.Options{}, errors.New(errors.ErrCodeInvalidInput, "request body is empty")
		}
		return req, pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}

	opts := req.Options
	if opts.MinColumnWidth == 0 {
		opts.MinColumnWidth = s.cfg.Layout.MinColumnWidth
	}
	if opts.MaxColumns == 0 {
		opts.MaxColumns = s.cfg.Layout.MaxColumns
	}
	if opts.EstimatedCardHeight == 0 {
		opts.EstimatedCardHeight = s.cfg.Layout.EstimatedCardHeight
	}
	opts.Buffer = s.cfg.Buffer
	if req.Buffer != nil {
		opts.Buffer = *req.Buffer
	}
	opts.Logger = s.logger.With("request_id", requestID(r))
	return req, opts, nil
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	req, opts, err := s.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	l, hit, err := s.runner.ComputeLayoutWithCacheInfo(r.Context(), req.Photos, opts)
	if err != nil {
		s.reportError(r, err)
		writeError(w, err)
		return
	}

	w.Header().Set("X-Cache", cacheHeader(hit))
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	req, opts, err := s.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := opts.ValidateForWindow(); err != nil {
		writeError(w, err)
		return
	}

	l, hit, err := s.runner.ComputeLayoutWithCacheInfo(r.Context(), req.Photos, opts)
	if err != nil {
		s.reportError(r, err)
		writeError(w, err)
		return
	}

	w.Header().Set("X-Cache", cacheHeader(hit))
	writeJSON(w, http.StatusOK, s.runner.WindowLayout(r.Context(), l, opts))
}

func (s *Server) reportError(r *http.Request, err error) {
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	if errors.GetCode(err) == "" || errors.Is(err, errors.ErrCodeInternal) {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestID(r), "error", err)
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
