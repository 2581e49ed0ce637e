package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"krl-safety-backend/config"
	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/parse"
)

// Fallback texts stored when no usable scene description is available.
const (
	FallbackFailed = "Gagal menganalisis gambar dengan AI"
	FallbackEmpty  = "Tidak dapat menganalisis gambar"
)

// Prompt asks for a short Indonesian description of a carriage camera frame.
const Prompt = `kamu adalah seorang asisten yang membantu satpam krl untuk mengjaga keamanan, ketertiban, dan keramaian di krl.
analisis gambar kamera keamanan kereta ini. Berikan deskripsi singkat dalam bahasa Indonesia (2-3 kalimat saja) tentang: 1) Perkiraan jumlah penumpang, 2) Tingkat kepadatan (kosong/sedang/padat), 3) Kondisi umum gerbong.
Fokus pada kepadatan penumpang atau anomali lainnya. Untuk beberapa hal umum seperti papan iklan diabaikan saja. Buat dalam bentuk 2 sampai 3 kalimat saja, jangan dalam bentuk poin.
Sebagai konteks tambahan. `

// Describer produces a natural-language scene description for an image.
type Describer interface {
	Describe(ctx context.Context, image parse.ImageRef) (string, error)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	http      *resty.Client
	model     string
	maxTokens int
	log       *zap.Logger
}

// NewClient builds a vision client from config.
func NewClient(cfg config.VisionConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:      http,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		log:       log.Named("vision"),
	}
}

// Describe returns the model's description of the image. An empty answer
// yields FallbackEmpty without error.
func (c *Client) Describe(ctx context.Context, image parse.ImageRef) (string, error) {
	if image.Empty() {
		return "", apperr.Validation("image", "is empty")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: image.URL, Detail: "high"}},
			},
		}},
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
	}

	var result chatResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", errors.Join(apperr.ErrDependencyDegraded, err))
	}
	if resp.IsError() {
		c.log.Warn("vision api returned an error",
			zap.Int("status", resp.StatusCode()),
			zap.String("type", failure.Error.Type),
			zap.String("message", failure.Error.Message),
		)
		return "", fmt.Errorf("vision api status %d: %w", resp.StatusCode(), apperr.ErrDependencyDegraded)
	}

	if len(result.Choices) == 0 {
		return FallbackEmpty, nil
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return FallbackEmpty, nil
	}
	return text, nil
}

// Unavailable is used when no API key is configured.
type Unavailable struct{}

func (Unavailable) Describe(context.Context, parse.ImageRef) (string, error) {
	return "", fmt.Errorf("vision not configured: %w", apperr.ErrDependencyDegraded)
}

// New returns a Client when an API key is configured, Unavailable otherwise.
func New(cfg config.VisionConfig, log *zap.Logger) Describer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("vision api key not configured; scene descriptions disabled")
		return Unavailable{}
	}
	return NewClient(cfg, log)
}
