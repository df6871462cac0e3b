package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclear/engine/pkg/cache"
	"github.com/geoclear/engine/pkg/config"
	"github.com/geoclear/engine/pkg/pipeline"
)

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return New(config.Default().Server, pipeline.NewRunner(logger), logger, opts...)
}

func postProcess(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/geometry/process", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func conflictRequest() ProcessRequest {
	return ProcessRequest{
		Features: []pipeline.FeatureInput{
			{ID: "highway", Geometry: "LINESTRING(0 0,100 0)", Priority: "P1_HIGHWAY"},
			{ID: "road", Geometry: "LINESTRING(0 2,100 2)", Priority: "P2_MAIN_ROAD"},
		},
	}
}

func TestProcessEndpoint(t *testing.T) {
	h := testServer(t).Routes()
	w := postProcess(t, h, conflictRequest())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Results, 2)
	assert.Positive(t, resp.TotalConflictsDetected)
	assert.False(t, resp.CacheHit)
}

func TestProcessEndpointErrors(t *testing.T) {
	h := testServer(t).Routes()

	tests := []struct {
		name string
		body any
		want int
		code string
	}{
		{
			name: "empty batch",
			body: ProcessRequest{},
			want: http.StatusBadRequest,
			code: "INVALID_INPUT",
		},
		{
			name: "malformed geometry",
			body: ProcessRequest{Features: []pipeline.FeatureInput{
				{ID: "x", Geometry: "LINESTRING(0 0", Priority: "P1_HIGHWAY"},
			}},
			want: http.StatusBadRequest,
			code: "INVALID_GEOMETRY",
		},
		{
			name: "unknown priority",
			body: ProcessRequest{Features: []pipeline.FeatureInput{
				{ID: "x", Geometry: "LINESTRING(0 0,10 0)", Priority: "P0_NOPE"},
			}},
			want: http.StatusBadRequest,
			code: "INVALID_PRIORITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postProcess(t, h, tt.body)
			assert.Equal(t, tt.want, w.Code)

			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestProcessEndpointRejectsBadJSON(t *testing.T) {
	h := testServer(t).Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/geometry/process", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessCaching(t *testing.T) {
	fileCache, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	h := testServer(t, WithCache(fileCache, time.Hour)).Routes()

	first := postProcess(t, h, conflictRequest())
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := postProcess(t, h, conflictRequest())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	// The pipeline result is served from cache, but the envelope reflects
	// the serving request: a fresh request id and an honest cache flag.
	var firstResp, secondResp ProcessResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.False(t, firstResp.CacheHit)
	assert.True(t, secondResp.CacheHit)
	require.NotEmpty(t, secondResp.RequestID)
	assert.NotEqual(t, firstResp.RequestID, secondResp.RequestID)
	assert.Equal(t, firstResp.Results, secondResp.Results)

	// Changed options bypass the cached entry.
	req := conflictRequest()
	req.Config.MinClearance = 9
	third := postProcess(t, h, req)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
}

func TestHistoryEndpoint(t *testing.T) {
	h := testServer(t).Routes()

	// History starts empty.
	req := httptest.NewRequest(http.MethodGet, "/api/geometry/history", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs []json.RawMessage `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Runs)

	// A processed batch shows up.
	postProcess(t, h, conflictRequest())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/geometry/history", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 1)

	// Bad limit is rejected.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/geometry/history?limit=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndIndex(t *testing.T) {
	h := testServer(t).Routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "geoclear")
}

func TestRequestIDPropagation(t *testing.T) {
	h := testServer(t).Routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
