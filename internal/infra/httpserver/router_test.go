package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/resolve-ai/internal/application/analysis"
	domai "github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/middleware"
)

type stubAnalyzer struct {
	result *repair.Analysis
	err    error
	got    appanalysis.AnalyzeCommand
}

func (s *stubAnalyzer) Analyze(_ context.Context, cmd appanalysis.AnalyzeCommand) (*repair.Analysis, error) {
	s.got = cmd
	return s.result, s.err
}

type memScans struct {
	mu   sync.Mutex
	rows []*domain.StoredScan
}

func (m *memScans) Insert(_ context.Context, s *domain.StoredScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append([]*domain.StoredScan{s}, m.rows...)
	return nil
}

func (m *memScans) ListByDevice(_ context.Context, device string) ([]*domain.StoredScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.StoredScan
	for _, s := range m.rows {
		if s.DeviceID == device {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memScans) Delete(_ context.Context, device string, id domain.ScanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, s := range m.rows {
		if s.DeviceID != device || s.ID != id {
			kept = append(kept, s)
		}
	}
	m.rows = kept
	return nil
}

func newTestServer(t *testing.T, a Analyzer, staticDir string) (*httptest.Server, *memScans) {
	t.Helper()
	scans := &memScans{}
	srv := httptest.NewServer(NewRouter(a, scans, Options{StaticDir: staticDir, Logger: zap.NewNop()}))
	t.Cleanup(srv.Close)
	return srv, scans
}

func errorOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnalyze_Success(t *testing.T) {
	stub := &stubAnalyzer{result: &repair.Analysis{ObjectName: "Kettle", DangerLevel: repair.DangerLow, Steps: []string{"a"}}}
	srv, _ := newTestServer(t, stub, "")

	body := `{"mediaItems":[{"mimeType":"image/jpeg","data":"Zm9v"}],"userPrompt":"why?","skillLevel":"Expert"}`
	resp, err := http.Post(srv.URL+"/api/analyze", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got repair.Analysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Kettle", got.ObjectName)
	assert.Equal(t, repair.SkillExpert, stub.got.SkillLevel)
	assert.Equal(t, "why?", stub.got.Query)
	assert.Equal(t, repair.MediaImage, stub.got.Media[0].Kind)
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"empty media", `{"mediaItems":[]}`, nil, http.StatusBadRequest, "No media items provided"},
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"not configured", "", domai.ErrNotConfigured, http.StatusServiceUnavailable, "AI service not configured. Check API key."},
		{"quota", "", domai.ErrQuotaExceeded, http.StatusTooManyRequests, "ai quota exceeded"},
		{"other", "", errors.New("upstream exploded"), http.StatusInternalServerError, "upstream exploded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubAnalyzer{err: tc.err}, "")
			body := tc.body
			if body == "" {
				body = `{"mediaItems":[{"mimeType":"image/png","data":"Zm9v"}]}`
			}
			resp, err := http.Post(srv.URL+"/api/analyze", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.msg, errorOf(t, resp))
		})
	}
}

func TestAnalyze_NoAnalyzerIs503(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	resp, err := http.Post(srv.URL+"/api/analyze", "application/json",
		strings.NewReader(`{"mediaItems":[{"mimeType":"image/png","data":"Zm9v"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func doReq(t *testing.T, method, url, device, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if device != "" {
		req.Header.Set(middleware.DeviceHeader, device)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestScansEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	device := uuid.NewString()
	other := uuid.NewString()
	id := uuid.NewString()

	scan := domain.StoredScan{
		ID:       domain.ScanID(id),
		Analysis: repair.Analysis{ObjectName: "Chair", DangerLevel: repair.DangerLow},
		Media:    []repair.MediaItem{{ID: "1", Data: "Zm9v", MIMEType: "image/png", Kind: repair.MediaImage}},
	}
	raw, _ := json.Marshal(scan)

	resp := doReq(t, http.MethodPost, srv.URL+"/api/scans", device, string(raw))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doReq(t, http.MethodGet, srv.URL+"/api/scans", device, "")
	var list []*domain.StoredScan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Chair", list[0].Analysis.ObjectName)

	resp = doReq(t, http.MethodGet, srv.URL+"/api/scans", other, "")
	list = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)

	resp = doReq(t, http.MethodDelete, srv.URL+"/api/scans/"+uuid.NewString(), device, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doReq(t, http.MethodDelete, srv.URL+"/api/scans/"+id, device, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doReq(t, http.MethodGet, srv.URL+"/api/scans", device, "")
	list = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestScansEndpoints_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	resp := doReq(t, http.MethodGet, srv.URL+"/api/scans", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doReq(t, http.MethodPost, srv.URL+"/api/scans", uuid.NewString(), `{"id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doReq(t, http.MethodDelete, srv.URL+"/api/scans/nope", uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	srv, _ := newTestServer(t, nil, dir)

	resp := doReq(t, http.MethodGet, srv.URL+"/history/123", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "app")

	resp = doReq(t, http.MethodGet, srv.URL+"/app.js", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doReq(t, http.MethodGet, srv.URL+"/api/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
