package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/model"
)

func readDataLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamEvents(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(h.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/voice/events/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-Id", "u1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"type":"connected","message":"Voice events stream connected"}`, readDataLine(t, body))

	select {
	case since := <-h.notifier.since:
		assert.WithinDuration(t, time.Now(), since, 5*time.Second)
	case <-time.After(time.Second):
		t.Fatal("stream did not subscribe")
	}

	h.notifier.batches <- events.Batch{Cases: []events.CaseEvent{
		{ID: "k2", CaseType: model.CaseTypeCrowding, CarriageID: "g1", CarriageName: "Gerbong 1"},
		{ID: "k1", CaseType: model.CaseTypeTheft, CarriageID: "g2"},
	}}

	var msg struct {
		Type string             `json:"type"`
		Data []events.CaseEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readDataLine(t, body)), &msg))
	assert.Equal(t, "kasus_event", msg.Type)
	require.Len(t, msg.Data, 2)
	assert.Equal(t, "k2", msg.Data[0].ID)
	assert.Equal(t, "Gerbong 1", msg.Data[0].CarriageName)
}

func TestStreamEvents_Heartbeat(t *testing.T) {
	h := newHarness(t)
	handler := NewHandler(h.store, Services{Notifier: h.notifier}, nil, nil)
	handler.heartbeat = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	c, _ := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/voice/events/stream", nil).WithContext(ctx))

	handler.StreamEvents(c)

	out := w.Body.String()
	assert.True(t, strings.HasPrefix(out, `data: {"type":"connected"`), out)
	assert.Contains(t, out, ": heartbeat\n\n")
}
