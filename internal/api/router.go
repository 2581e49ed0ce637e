package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"krl-safety-backend/config"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/mw"
	"krl-safety-backend/internal/store"
)

// WebhookTokenHeader carries the shared secret of the detector webhook.
const WebhookTokenHeader = "X-Webhook-Token"

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, svc Services, webpushOptions *webpush.Options, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(log), ErrorHandlingMiddleware())

	handler := NewHandler(s, svc, webpushOptions, log)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	webhookLimiter := mw.RateLimiter(rate.Limit(cfg.Webhook.RateLimitPerSec), cfg.Webhook.RateLimitBurst)

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, mw.ByOfficerAndURI)

	r.GET("/healthz", handler.Healthz)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(mw.FlushOnWrite(cacheStore))

	// Machine-to-machine: the detector has no officer identity.
	api.POST("/webhook", webhookLimiter, mw.SharedToken(WebhookTokenHeader, cfg.Webhook.Token), handler.PostWebhook)

	officer := api.Group("")
	officer.Use(rateLimiter, mw.Auth(cfg.Auth.UserHeader, s))
	{
		officer.GET("/kasus/latest", handler.GetLatestCases)
		officer.GET("/kasus", handler.ListCases)
		officer.POST("/kasus", handler.CreateCase)
		officer.POST("/kasus/take", handler.TakeCase)
		officer.GET("/kasus/:id", handler.GetCase)
		officer.DELETE("/kasus/:id", handler.DeleteCase)
		officer.PATCH("/kasus/:id/status", handler.UpdateCaseStatus)
		officer.POST("/kasus/:id/arrive", handler.ArriveAtCase)

		officer.POST("/voice/handle-input", handler.HandleVoiceInput)
		officer.GET("/voice/events/stream", handler.StreamEvents)

		officer.GET("/krl/summary", caching, handler.GetTrainSummary)
		officer.GET("/krl/all", caching, handler.GetTrains)
		officer.GET("/gerbong", caching, handler.ListCarriages)
		officer.GET("/gerbong/:id", caching, handler.GetCarriage)

		officer.GET("/user/settings", handler.GetUserSettings)
		officer.PUT("/user/settings", handler.PutUserSettings)
		officer.GET("/user/krl-selection", handler.GetTrainSelection)
		officer.POST("/user/krl-selection", handler.PostTrainSelection)

		officer.GET("/subscriptions", handler.GetSubscription)
		officer.PUT("/subscriptions", handler.PutSubscription)
		officer.DELETE("/subscriptions", handler.DeleteSubscription)
		officer.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: errorPayload{Type: "not_found", Message: "route not found"}})
	})

	return r
}
