package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/ingest"
	"krl-safety-backend/internal/lifecycle"
	"krl-safety-backend/internal/metrics"
	"krl-safety-backend/internal/store"
)

// DefaultHeartbeat is the interval of keep-alive comments on event streams.
const DefaultHeartbeat = 15 * time.Second

// Services are the domain components behind the HTTP handlers.
type Services struct {
	Ingest   *ingest.Service
	Cases    *lifecycle.Manager
	Notifier events.Notifier
	Metrics  *metrics.Metrics
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	ingest    *ingest.Service
	cases     *lifecycle.Manager
	notifier  events.Notifier
	metrics   *metrics.Metrics
	webpush   *webpush.Options
	heartbeat time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc Services, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:     s,
		ingest:    svc.Ingest,
		cases:     svc.Cases,
		notifier:  svc.Notifier,
		metrics:   svc.Metrics,
		webpush:   webpushOptions,
		heartbeat: DefaultHeartbeat,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.Named("api"),
	}
}
