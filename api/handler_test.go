package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/api"
	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/monitor"
	"github.com/lukemcguire/backlinkwatch/result"
	"github.com/lukemcguire/backlinkwatch/store"
)

const testToken = "s3cret"

type fakeChecks struct {
	store     *store.Store
	forced    bool
	checkedID []int64
	runErr    error
}

func (f *fakeChecks) CheckDue(_ context.Context, force bool) (*checker.RunResult, error) {
	f.forced = force
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &checker.RunResult{
		RunID: "run-1",
		Stats: result.BatchStats{Selected: 3, Checked: 3, Live: 2, LinksFound: 1, Errors: 1},
	}, nil
}

func (f *fakeChecks) CheckIDs(_ context.Context, ids []int64) (*checker.RunResult, error) {
	f.checkedID = ids
	return &checker.RunResult{RunID: "run-2", Stats: result.BatchStats{Selected: len(ids), Checked: len(ids)}}, nil
}

func (f *fakeChecks) Test(_ context.Context, live, target, anchorText string) (result.Verification, error) {
	rec := backlink.New(live, target, anchorText)
	if err := rec.Validate(); err != nil {
		return result.Verification{}, err
	}
	return result.Verification{Status: result.StatusLive, HTTPStatus: 200, LinkFound: true, MatchType: anchor.Exact}, nil
}

func (f *fakeChecks) Stats(ctx context.Context) (backlink.Stats, error) {
	return f.store.Stats(ctx)
}

type testServer struct {
	router *gin.Engine
	store  *store.Store
	checks *fakeChecks
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	checks := &fakeChecks{store: st}
	reg := prometheus.NewRegistry()
	router := api.NewRouter(api.NewHandler(st, checks, nil), api.RouterConfig{
		APIToken: token,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{router: router, store: st, checks: checks}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, n int) []backlink.Record {
	t.Helper()
	out := make([]backlink.Record, 0, n)
	for i := range n {
		rec, err := s.store.Insert(context.Background(), backlink.New(
			"https://blog.example.org/post-"+string(rune('a'+i)), "https://example.com", "Example"))
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, testToken)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + testToken, want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + testToken, want: http.StatusOK},
		{name: "scheme is case insensitive", header: "bearer " + testToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	s := newTestServer(t, "")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t, testToken)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestCreateGetAndDeleteBacklink(t *testing.T) {
	s := newTestServer(t, testToken)

	w := s.do(t, http.MethodPost, "/api/backlinks", map[string]string{
		"live_link": "https://blog.example.org/post", "target_url": "https://example.com", "target_anchor": "Example",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[backlink.Record](t, w)
	assert.Equal(t, result.StatusPending, created.Status)

	path := "/api/backlinks/" + jsonNumber(created.ID)
	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.LiveLink, decode[backlink.Record](t, w).LiveLink)

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBacklinkMissingFields(t *testing.T) {
	s := newTestServer(t, testToken)
	w := s.do(t, http.MethodPost, "/api/backlinks", map[string]string{"live_link": "https://a.example"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBacklinkInvalidID(t *testing.T) {
	s := newTestServer(t, testToken)
	w := s.do(t, http.MethodGet, "/api/backlinks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBacklinks(t *testing.T) {
	s := newTestServer(t, testToken)
	recs := s.seed(t, 5)
	require.NoError(t, s.store.SaveCheck(context.Background(), recs[0].Apply(result.Verification{
		Status: result.StatusLive, HTTPStatus: 200, LinkFound: true, MatchType: anchor.Exact, CheckedAt: time.Now(),
	})))

	w := s.do(t, http.MethodGet, "/api/backlinks?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	type listBody struct {
		Backlinks  []backlink.Record `json:"backlinks"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		TotalPages int               `json:"totalPages"`
	}
	body := decode[listBody](t, w)
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 3, body.TotalPages)
	assert.Len(t, body.Backlinks, 2)

	w = s.do(t, http.MethodGet, "/api/backlinks?status=live&link_found=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[listBody](t, w)
	require.Len(t, body.Backlinks, 1)
	assert.Equal(t, recs[0].ID, body.Backlinks[0].ID)
	assert.True(t, body.Backlinks[0].LinkFound)

	w = s.do(t, http.MethodGet, "/api/backlinks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodGet, "/api/backlinks?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListIDsAndBulkDelete(t *testing.T) {
	s := newTestServer(t, testToken)
	recs := s.seed(t, 3)

	w := s.do(t, http.MethodGet, "/api/backlinks/ids?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ids := decode[struct {
		IDs []int64 `json:"ids"`
	}](t, w).IDs
	assert.Len(t, ids, 3)

	w = s.do(t, http.MethodPost, "/api/backlinks/bulk-delete", map[string]any{"ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/backlinks/bulk-delete", map[string]any{"ids": []int64{recs[0].ID, recs[1].ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["deleted"])

	w = s.do(t, http.MethodDelete, "/api/backlinks/delete-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["deleted"])
}

func TestUploadCSV(t *testing.T) {
	s := newTestServer(t, testToken)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("csvFile", "links.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("live_link,target_url,target_anchor\n" +
		"https://a.example/1,https://example.com,Example\n" +
		"https://a.example/2,,Example\n" +
		"https://a.example/3,https://example.com/p,Products\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 1, body["rejected"])

	n, err := s.store.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, testToken)
	w := s.do(t, http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckLinks(t *testing.T) {
	s := newTestServer(t, testToken)

	w := s.do(t, http.MethodPost, "/api/check-links", map[string]any{"forceAll": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.checks.forced)
	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, body["processed"])
	assert.EqualValues(t, 1, body["errors"])
	assert.Equal(t, "run-1", body["run_id"])

	w = s.do(t, http.MethodPost, "/api/check-links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.checks.forced)

	w = s.do(t, http.MethodPost, "/api/check-links", map[string]any{"ids": []int64{4, 7}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{4, 7}, s.checks.checkedID)

	s.checks.runErr = monitor.ErrRunInProgress
	w = s.do(t, http.MethodPost, "/api/check-links", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTestLink(t *testing.T) {
	s := newTestServer(t, testToken)

	w := s.do(t, http.MethodPost, "/api/test-link", map[string]string{"live_link": "https://a.example"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/test-link", map[string]string{
		"live_link": "https://a.example", "target_url": "https://example.com", "target_anchor": "Example",
	})
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[result.Verification](t, w)
	assert.Equal(t, result.StatusLive, v.Status)
	assert.Equal(t, anchor.Exact, v.MatchType)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, testToken)
	s.seed(t, 2)

	w := s.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[backlink.Stats](t, w)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Pending)
}

func TestExportAndTemplate(t *testing.T) {
	s := newTestServer(t, testToken)
	s.seed(t, 2)

	w := s.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Live Link,Target URL"))

	w = s.do(t, http.MethodGet, "/api/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]backlink.Record](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/template", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "live_link,target_url,target_anchor"))

	w = s.do(t, http.MethodGet, "/api/template?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	_ = f.Close()
}

func TestExcelReport(t *testing.T) {
	s := newTestServer(t, testToken)
	s.seed(t, 2)

	w := s.do(t, http.MethodGet, "/api/reports/excel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "backlink-report-")

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Detailed Backlinks")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
