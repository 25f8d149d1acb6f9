package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/config"
	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

func thesisPDF(t *testing.T) []byte {
	t.Helper()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 14)
	pdf.AddPage()
	pdf.Cell(0, 10, "UGM")
	pdf.Ln(12)
	pdf.Cell(0, 10, "Analisis Sistem Informasi Akademik")
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

type remoteRepo struct {
	mu      sync.Mutex
	cookies []string
}

func (r *remoteRepo) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cookies...)
}

func newRemote(t *testing.T, found map[string][]byte) (*httptest.Server, *remoteRepo) {
	t.Helper()

	repo := &remoteRepo{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		repo.mu.Lock()
		repo.cookies = append(repo.cookies, r.Header.Get("Cookie"))
		repo.mu.Unlock()

		id := strings.TrimPrefix(r.URL.Path, "/download/")
		if body, ok := found[id]; ok {
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="thesis-`+id+`.pdf"`)
			_, _ = w.Write(body)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>not available</body></html>"))
	}))
	t.Cleanup(srv.Close)
	return srv, repo
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()

	return config.Config{
		Server: config.ServerConfig{Port: 0, RequestTimeoutSeconds: 10},
		Remote: config.RemoteConfig{
			BaseURL:     baseURL,
			CookieName:  "ugmfw_session",
			CookieValue: "abc123",
			UserAgent:   "etd-crawler-test",
		},
		Crawler: config.CrawlerConfig{DelayMillis: 0, FlushEvery: 10},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5, MaxBodyBytes: 1 << 20},
		Catalog: config.CatalogConfig{
			Backend: config.BackendLocal,
			Path:    filepath.Join(t.TempDir(), "crawled_pdfs.json"),
		},
		Progress: config.ProgressConfig{FlushIntervalMs: 10},
	}
}

func TestBuildCrawlAndQueryThroughAPI(t *testing.T) {
	t.Parallel()

	remote, repo := newRemote(t, map[string][]byte{"101": thesisPDF(t)})
	cfg := testConfig(t, remote.URL+"/download/")

	app, err := Build(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/crawls", strings.NewReader(`{"start_id":100,"end_id":102}`))
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return !app.Engine().Status().IsRunning
	}, 10*time.Second, 10*time.Millisecond)
	app.Engine().Wait()

	snap := app.Engine().Status()
	assert.Equal(t, int64(102), snap.CurrentID)
	assert.Equal(t, int64(1), snap.FoundCount)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents/101", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got crawler.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "thesis-101.pdf", got.Filename)
	assert.Equal(t, "Analisis Sistem Informasi Akademik", got.Title)
	assert.Equal(t, remote.URL+"/download/101", got.SourceURL)

	data, err := os.ReadFile(cfg.Catalog.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"101"`)
	assert.Contains(t, string(data), `"direct_url": "`+remote.URL+`/download/101"`)

	cookies := repo.seen()
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		assert.Equal(t, "ugmfw_session=abc123", c)
	}
}

func TestBuildSkipsKnownIDsAfterReload(t *testing.T) {
	t.Parallel()

	remote, repo := newRemote(t, map[string][]byte{"5": thesisPDF(t)})
	cfg := testConfig(t, remote.URL+"/download/")

	first, err := Build(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, first.Engine().Run(context.Background(), 5, 5))
	require.NoError(t, first.Close(context.Background()))
	require.Len(t, repo.seen(), 1)

	second, err := Build(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close(context.Background()) })
	assert.Equal(t, 1, second.Catalog().Count())

	require.NoError(t, second.Engine().Run(context.Background(), 5, 5))
	assert.Len(t, repo.seen(), 1)
}

func TestBuildMemoryBackendProbes(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://etd.example/download/")
	cfg.Catalog = config.CatalogConfig{Backend: config.BackendMemory}

	app, err := Build(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"documents":0`)
	assert.NotNil(t, app.Logger())
}

func TestBuildRejectsDirectoryCatalogPath(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://etd.example/download/")
	cfg.Catalog.Path = t.TempDir()

	_, err := Build(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local catalog backend")
}
