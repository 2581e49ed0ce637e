package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"krl-safety-backend/internal/metrics"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/store"
)

// Push outcomes recorded in metrics.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomePruned  = "pruned"
	OutcomeDropped = "dropped"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body delivered to the browser service worker.
type Payload struct {
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	CaseID     string         `json:"kasusId"`
	CarriageID string         `json:"gerbongId"`
	CaseType   model.CaseType `json:"caseType"`
	URL        string         `json:"url"`
}

// WorkerPool sends new-case alerts to the officers on the case's train.
type WorkerPool struct {
	size    int
	jobs    chan model.Case
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool. queue bounds the pending jobs;
// Dispatch drops a job when the queue is full.
func NewWorkerPool(size, queue int, s store.Store, webpushOptions *webpush.Options, m *metrics.Metrics, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queue < size {
		queue = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Case, queue),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: m,
		log:     log.Named("push"),
	}
}

// Run launches the workers and blocks until ctx is done.
func (wp *WorkerPool) Run(ctx context.Context) error {
	done := make(chan struct{}, wp.size)
	for i := 0; i < wp.size; i++ {
		go func(id int) {
			wp.worker(ctx, id)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < wp.size; i++ {
		<-done
	}
	return nil
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case c := <-wp.jobs:
			wp.notifyCase(ctx, c)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues a new case for delivery without blocking.
func (wp *WorkerPool) Dispatch(c model.Case) {
	if wp == nil {
		return
	}
	select {
	case wp.jobs <- c:
	default:
		wp.metrics.Push(OutcomeDropped)
		wp.log.Warn("push queue full, dropping case alert", zap.String("case_id", c.ID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.Case {
	return wp.jobs
}

// BuildPayload renders the alert for a case in its carriage.
func BuildPayload(c model.Case, carriage model.Carriage) Payload {
	label := carriage.Name
	if label == "" {
		label = c.CarriageID
	}

	title := fmt.Sprintf("Kasus baru di %s", label)
	if c.CaseType == model.CaseTypeCrowding {
		title = fmt.Sprintf("Peringatan kepadatan di %s", label)
	}
	if carriage.Train != nil && carriage.Train.Name != "" {
		title = fmt.Sprintf("%s (%s)", title, carriage.Train.Name)
	}

	return Payload{
		Title:      title,
		Body:       c.Name,
		CaseID:     c.ID,
		CarriageID: c.CarriageID,
		CaseType:   c.CaseType,
		URL:        "/kasus/" + c.ID,
	}
}

// notifyCase fetches the train's subscriptions and sends the case alert.
func (wp *WorkerPool) notifyCase(ctx context.Context, c model.Case) {
	log := wp.log.With(zap.String("case_id", c.ID), zap.String("gerbong_id", c.CarriageID))

	detail, err := wp.store.GetCarriage(ctx, c.CarriageID)
	if err != nil {
		log.Error("failed to load carriage for push", zap.Error(err))
		return
	}

	subscriptions, err := wp.store.SubscriptionsForTrain(ctx, detail.TrainID)
	if err != nil {
		log.Error("failed to fetch subscriptions", zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(BuildPayload(c, detail.Carriage))
	if err != nil {
		log.Error("failed to encode push payload", zap.Error(err))
		return
	}

	log.Debug("sending case alerts", zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.Push(OutcomeFailed)
		wp.log.Warn("failed to send push", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		wp.metrics.Push(OutcomePruned)
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	case resp.StatusCode >= 400:
		wp.metrics.Push(OutcomeFailed)
		wp.log.Warn("push service rejected notification",
			zap.String("endpoint", sub.Endpoint),
			zap.Int("status", resp.StatusCode),
		)
	default:
		wp.metrics.Push(OutcomeSent)
	}
}
