package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/geoclear/engine/pkg/buildinfo"
	"github.com/geoclear/engine/pkg/cache"
	"github.com/geoclear/engine/pkg/errors"
	"github.com/geoclear/engine/pkg/history"
	"github.com/geoclear/engine/pkg/observability"
	"github.com/geoclear/engine/pkg/pipeline"
)

// maxRequestBody bounds process request payloads (8 MiB).
const maxRequestBody = 8 << 20

// ProcessRequest is the POST /api/geometry/process payload.
type ProcessRequest struct {
	Features []pipeline.FeatureInput `json:"features"`
	Config   pipeline.Options        `json:"config"`
}

// ProcessResponse wraps the pipeline result with serving metadata.
type ProcessResponse struct {
	*pipeline.Result
	CacheHit  bool   `json:"cache_hit"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	opts := s.applyDefaults(req.Config)
	key, hashable := s.resultKey(req.Features, opts)

	if hashable {
		if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			// Only the pipeline result is cached; the serving envelope
			// (request id, cache flag) is rebuilt for every response.
			var cached pipeline.Result
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "result")
				s.recordHistory(r, &cached, true)
				w.Header().Set("X-Cache", "HIT")
				s.writeJSON(w, http.StatusOK, ProcessResponse{
					Result:    &cached,
					CacheHit:  true,
					RequestID: requestIDFrom(ctx),
				})
				return
			}
			// Unreadable entry, recompute.
		}
		observability.Cache().OnCacheMiss(ctx, "result")
	}

	result, err := s.runner.Execute(ctx, req.Features, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if hashable {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				s.logger.Warn("cache write failed", "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "result", len(data))
			}
		}
	}

	s.recordHistory(r, result, false)

	w.Header().Set("X-Cache", "MISS")
	s.writeJSON(w, http.StatusOK, ProcessResponse{
		Result:    result,
		RequestID: requestIDFrom(ctx),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}

	recs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "list history"))
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": recs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service": "geoclear",
		"version": buildinfo.Version,
	})
}

// applyDefaults fills request options from the server's configured defaults.
func (s *Server) applyDefaults(opts pipeline.Options) pipeline.Options {
	if opts.MinClearance <= 0 {
		opts.MinClearance = s.defaults.MinClearance
	}
	if opts.ForceStrength <= 0 {
		opts.ForceStrength = s.defaults.ForceStrength
	}
	if opts.AngleThreshold <= 0 {
		opts.AngleThreshold = s.defaults.AngleThreshold
	}
	if opts.SnapTolerance <= 0 {
		opts.SnapTolerance = s.defaults.SnapTolerance
	}
	if opts.MaxDisplacement <= 0 {
		opts.MaxDisplacement = s.defaults.MaxDisplacement
	}
	if opts.Workers <= 0 {
		opts.Workers = s.defaults.Workers
	}
	return opts
}

// resultKey derives the cache key from a content hash of the features plus
// the options that affect the output.
func (s *Server) resultKey(feats []pipeline.FeatureInput, opts pipeline.Options) (string, bool) {
	data, err := json.Marshal(feats)
	if err != nil {
		return "", false
	}
	return s.keyer.ResultKey(cache.Hash(data), cache.ResultKeyOpts{
		MinClearance:    opts.MinClearance,
		ForceStrength:   opts.ForceStrength,
		AngleThreshold:  opts.AngleThreshold,
		SnapTolerance:   opts.SnapTolerance,
		MaxDisplacement: opts.MaxDisplacement,
		Enable3DDepth:   opts.Enable3DDepth,
	}), true
}

// recordHistory appends a run record; failures are logged, not surfaced.
func (s *Server) recordHistory(r *http.Request, res *pipeline.Result, cacheHit bool) {
	if err := s.store.Append(r.Context(), history.NewRecord(res, cacheHit)); err != nil {
		s.logger.Warn("history write failed", "err", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	s.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(errors.GetCode(err)),
			"message": errors.UserMessage(err),
		},
	})
}
