package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"krl-safety-backend/config"
	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/ingest"
	"krl-safety-backend/internal/lifecycle"
	"krl-safety-backend/internal/metrics"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/store"
	"krl-safety-backend/internal/store/storetest"
	"krl-safety-backend/internal/vision"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeNotifier hands out whatever is pushed to batches.
type fakeNotifier struct {
	batches chan events.Batch
	since   chan time.Time
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{batches: make(chan events.Batch), since: make(chan time.Time, 1)}
}

func (f *fakeNotifier) Subscribe(ctx context.Context, since time.Time) <-chan events.Batch {
	select {
	case f.since <- since:
	default:
	}
	out := make(chan events.Batch)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-f.batches:
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

type harness struct {
	router   *gin.Engine
	store    store.Store
	notifier *fakeNotifier
	registry *prometheus.Registry
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	for _, fn := range tweak {
		fn(cfg)
	}

	s, _ := storetest.Seeded(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zap.NewNop()
	notifier := newFakeNotifier()

	svc := Services{
		Ingest:   ingest.NewService(s, vision.Unavailable{}, log, ingest.WithMetrics(m)),
		Cases:    lifecycle.NewManager(s, nil, m, log),
		Notifier: notifier,
		Metrics:  m,
	}
	router := NewRouter(cfg, s, svc, &webpush.Options{VAPIDPublicKey: "test-public-key"}, reg, log)
	return &harness{router: router, store: s, notifier: notifier, registry: reg}
}

func (h *harness) do(t *testing.T, method, path, officer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if officer != "" {
		req.Header.Set("X-User-Id", officer)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Error   *errorPayload   `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func (h *harness) openCase(t *testing.T, carriageID string, caseType model.CaseType, reportedAt time.Time) model.Case {
	t.Helper()
	ctx := context.Background()
	c := model.Case{Name: "Laporan", Description: "deskripsi", CaseType: caseType, CarriageID: carriageID, ReportedAt: reportedAt}
	require.NoError(t, h.store.CreateCase(ctx, &c))
	_, err := h.store.RecomputeCarriageStatus(ctx, carriageID)
	require.NoError(t, err)
	return c
}

func newTestContext(w *httptest.ResponseRecorder, req *http.Request) (*gin.Context, *gin.Engine) {
	c, engine := gin.CreateTestContext(w)
	c.Request = req
	return c, engine
}
