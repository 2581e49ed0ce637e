package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/lifecycle"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/mw"
)

type voiceInputRequest struct {
	CaseID     string `json:"kasusId"`
	Status     string `json:"status"`
	Transcript string `json:"transcript"`
}

// HandleVoiceInput applies an explicit status or a spoken command to a case
// and returns the confirmation to read back.
func (h *Handler) HandleVoiceInput(c *gin.Context) {
	var req voiceInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidBody(err))
		return
	}
	if strings.TrimSpace(req.CaseID) == "" {
		AbortWithError(c, apperr.Validation("kasusId", "is required"))
		return
	}

	var (
		outcome lifecycle.VoiceOutcome
		err     error
	)
	ctx, officerID := c.Request.Context(), mw.OfficerID(c)
	switch {
	case strings.TrimSpace(req.Status) != "":
		outcome, err = h.cases.ApplyVoiceStatus(ctx, req.CaseID, officerID, model.CaseStatus(strings.TrimSpace(req.Status)))
	case strings.TrimSpace(req.Transcript) != "":
		outcome, err = h.cases.TransitionByVoiceCommand(ctx, req.CaseID, officerID, req.Transcript)
	default:
		err = apperr.Validation("transcript", "status or transcript is required")
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": outcome})
}

type streamMessage struct {
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	Data    []events.CaseEvent `json:"data,omitempty"`
}

func writeEvent(w io.Writer, msg streamMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// StreamEvents handles GET /api/voice/events/stream. Cases reported after the
// connection is opened are pushed as kasus_event messages.
func (h *Handler) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.For(ctx, h.log)

	batches := h.notifier.Subscribe(ctx, h.now())
	defer h.metrics.SubscriberConnected()()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeEvent(c.Writer, streamMessage{Type: "connected", Message: "Voice events stream connected"}); err != nil {
		return
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("event stream closed by client")
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, streamMessage{Type: "kasus_event", Data: batch.Cases}); err != nil {
				log.Warn("failed to write case event", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
	}
}
