package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/store"
	"krl-safety-backend/internal/store/storetest"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func seedSubscriptions(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/budi", P256DH: "p1", Auth: "a1", OfficerID: "u1",
	}))
	require.NoError(t, s.UpsertSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/sari", P256DH: "p2", Auth: "a2", OfficerID: "u2",
	}))
}

func TestWorkerPool_Dispatch(t *testing.T) {
	s, _ := storetest.Seeded(t)
	wp := NewWorkerPool(1, 1, s, &webpush.Options{}, nil, zap.NewNop())

	wp.Dispatch(model.Case{ID: "c1", CarriageID: "g1"})
	// Queue is full; the second job is dropped instead of blocking.
	wp.Dispatch(model.Case{ID: "c2", CarriageID: "g1"})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "c1", job.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
	assert.Len(t, wp.Jobs(), 0)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	s, _ := storetest.Seeded(t)
	seedSubscriptions(t, s)

	wp := NewWorkerPool(1, 4, s, &webpush.Options{TTL: 60}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = wp.Run(ctx) }()

	t.Run("sends only to officers active on the train", func(t *testing.T) {
		var mu sync.Mutex
		var endpoints []string
		var got Payload
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				mu.Lock()
				defer mu.Unlock()
				endpoints = append(endpoints, sub.Endpoint)
				assert.NoError(t, json.Unmarshal(payload, &got))
				assert.Equal(t, 60, options.TTL)
				wg.Done()
				return response(http.StatusCreated), nil
			},
		}

		wp.Dispatch(model.Case{ID: "c1", CarriageID: "g1", CaseType: model.CaseTypeCrowding, Name: "Kepadatan High Density - 140 penumpang"})
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"https://push.example.com/budi"}, endpoints)
		assert.Equal(t, "Peringatan kepadatan di Gerbong 1 (KRL Bogor 1)", got.Title)
		assert.Equal(t, "Kepadatan High Density - 140 penumpang", got.Body)
		assert.Equal(t, "c1", got.CaseID)
		assert.Equal(t, "/kasus/c1", got.URL)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://push.example.com/sari", sub.Endpoint)
				wg.Done()
				return response(http.StatusGone), nil
			},
		}

		wp.Dispatch(model.Case{ID: "c2", CarriageID: "g3", CaseType: model.CaseTypeTheft})
		wg.Wait()

		assert.Eventually(t, func() bool {
			_, err := s.GetSubscription(context.Background(), "u2", "https://push.example.com/sari")
			return errors.Is(err, apperr.ErrNotFound)
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("unknown carriage sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("no notification expected")
				return response(http.StatusCreated), nil
			},
		}

		wp.Dispatch(model.Case{ID: "c3", CarriageID: "missing"})
		time.Sleep(100 * time.Millisecond)
	})
}

func TestBuildPayload(t *testing.T) {
	c := model.Case{ID: "c9", CarriageID: "g2", CaseType: model.CaseTypeHarassment, Name: "Pelecehan verbal"}

	p := BuildPayload(c, model.Carriage{})
	assert.Equal(t, "Kasus baru di g2", p.Title)
	assert.Equal(t, "Pelecehan verbal", p.Body)
	assert.Equal(t, model.CaseTypeHarassment, p.CaseType)

	p = BuildPayload(c, model.Carriage{Name: "Gerbong 2"})
	assert.Equal(t, "Kasus baru di Gerbong 2", p.Title)
}
