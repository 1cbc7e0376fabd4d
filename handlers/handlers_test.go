package handlers

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/AanchalYadav15/acciguard/broadcast"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/scoring"
	"github.com/AanchalYadav15/acciguard/services"
	"github.com/AanchalYadav15/acciguard/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var handlerNow = time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)

type memoryStore struct {
	saved []scoring.PredictionRecord
	stats store.Stats
	err   error
}

func (m *memoryStore) Save(_ context.Context, rec scoring.PredictionRecord) (uint, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.saved = append(m.saved, rec)
	return uint(len(m.saved)), nil
}

func (m *memoryStore) SaveAll(_ context.Context, recs []scoring.PredictionRecord) ([]uint, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]uint, 0, len(recs))
	for _, rec := range recs {
		m.saved = append(m.saved, rec)
		ids = append(ids, uint(len(m.saved)))
	}
	return ids, nil
}

func (m *memoryStore) Recent(_ context.Context, _ time.Duration, limit int) ([]scoring.PredictionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.saved) > limit {
		return m.saved[:limit], nil
	}
	return m.saved, nil
}

func (m *memoryStore) Stats(context.Context) (store.Stats, error) {
	if m.err != nil {
		return store.Stats{}, m.err
	}
	return m.stats, nil
}

type testEnv struct {
	store  *memoryStore
	hub    *broadcast.Hub
	svc    *services.PredictionService
	router *gin.Engine
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultProfile(),
		scoring.WithClock(clockwork.NewFakeClockAt(handlerNow)),
		scoring.WithSource(rand.NewPCG(11, 13)))
	require.NoError(t, err)

	env := &testEnv{store: &memoryStore{}, hub: broadcast.NewHub(16)}
	m := metrics.NewForTesting()
	env.svc = services.NewPredictionService(scorer, env.store, env.hub, m)

	h := NewPredictionHandler(env.svc, maxUpload)
	r := gin.New()
	r.POST("/predict", h.Predict)
	r.POST("/upload-predict", h.UploadPredict)
	r.GET("/get-high-risk-areas", h.GetHighRiskAreas)
	r.GET("/high-risk-areas.geojson", h.GetHighRiskAreasGeoJSON)
	r.GET("/get-stats", h.GetStats)
	r.GET("/ws", LiveWebSocket(env.svc, env.hub, m))
	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func subscribeHub(t *testing.T, env *testEnv) <-chan broadcast.Envelope {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := env.hub.Subscribe(ctx)
	require.NoError(t, err)
	return ch
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

var errDatabaseDown = errors.New("dial tcp: connection refused")
