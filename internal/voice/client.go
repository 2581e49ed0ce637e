package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"krl-safety-backend/internal/events"
)

const (
	DefaultUserHeader = "X-User-Id"

	eventsPath      = "/api/voice/events/stream"
	handleInputPath = "/api/voice/handle-input"
)

// ClientConfig points the voice clients at a krlwatchd instance.
type ClientConfig struct {
	BaseURL    string
	OfficerID  string
	UserHeader string
	Timeout    time.Duration
}

func newHTTP(cfg ClientConfig) *resty.Client {
	header := cfg.UserHeader
	if header == "" {
		header = DefaultUserHeader
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader(header, cfg.OfficerID)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPDispatcher posts final transcripts to the voice intake endpoint.
type HTTPDispatcher struct {
	http *resty.Client
}

func NewHTTPDispatcher(cfg ClientConfig) *HTTPDispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{http: newHTTP(cfg).SetTimeout(timeout)}
}

// Transition returns the confirmation message produced by the server.
func (d *HTTPDispatcher) Transition(ctx context.Context, caseID, transcript string) (string, error) {
	var out envelope
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"kasusId": caseID, "transcript": transcript}).
		SetResult(&out).
		SetError(&out).
		Post(handleInputPath)
	if err != nil {
		return "", fmt.Errorf("voice intake request failed: %w", err)
	}
	if resp.IsError() || !out.Success {
		if out.Error != nil {
			return "", fmt.Errorf("voice intake rejected (%d %s): %s", resp.StatusCode(), out.Error.Type, out.Error.Message)
		}
		return "", fmt.Errorf("voice intake rejected with status %d", resp.StatusCode())
	}

	var data struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode voice intake response: %w", err)
	}
	return data.Message, nil
}

// streamMessage is one SSE data payload.
type streamMessage struct {
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	Data    []events.CaseEvent `json:"data,omitempty"`
}

// StreamClient consumes the case event stream and hands each batch to a
// callback, reconnecting until its context is done.
type StreamClient struct {
	http      *resty.Client
	reconnect time.Duration
	log       *zap.Logger
}

func NewStreamClient(cfg ClientConfig, log *zap.Logger) *StreamClient {
	return &StreamClient{
		http:      newHTTP(cfg).SetHeader("Accept", "text/event-stream"),
		reconnect: 2 * time.Second,
		log:       log.Named("voice-stream"),
	}
}

// Run blocks until ctx is done.
func (c *StreamClient) Run(ctx context.Context, onBatch func(events.Batch)) error {
	for {
		err := c.consume(ctx, onBatch)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("event stream ended, reconnecting", zap.Error(err), zap.Duration("after", c.reconnect))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
	}
}

func (c *StreamClient) consume(ctx context.Context, onBatch func(events.Batch)) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(eventsPath)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode())
	}

	return readEvents(body, func(payload []byte) {
		var msg streamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("malformed stream event", zap.Error(err))
			return
		}
		switch msg.Type {
		case "connected":
			c.log.Info("event stream connected")
		case "kasus_event":
			if len(msg.Data) > 0 {
				onBatch(events.Batch{Cases: msg.Data})
			}
		}
	})
}

// readEvents splits an SSE body into data payloads. Comment lines are
// skipped and multi-line data fields are joined with newlines.
func readEvents(r io.Reader, onData func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data bytes.Buffer
	flush := func() {
		if data.Len() > 0 {
			onData(append([]byte(nil), data.Bytes()...))
			data.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("event stream closed by server")
}
