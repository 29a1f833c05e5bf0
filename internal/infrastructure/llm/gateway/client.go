package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
	"github.com/kirillkom/ride-progress/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL           string
	APIKey            string
	VisionModel       string
	ReviewModel       string
	ExtractionTimeout time.Duration
	ReviewTimeout     time.Duration
}

// Client talks to an OpenAI-compatible chat completions gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config) *Client {
	return NewWithExecutor(cfg, resilience.NewExecutor(resilience.DefaultConfig()))
}

func NewWithExecutor(cfg Config, executor *resilience.Executor) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 60 * time.Second
	}
	if cfg.ReviewTimeout <= 0 {
		cfg.ReviewTimeout = 30 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		executor:   executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	User     string        `json:"user,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, operation string, timeout time.Duration, req chatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var response chatResponse
	err := c.executor.Execute(ctx, "gateway."+operation, func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/chat/completions", req, &response, operation)
	}, classifyGatewayError)
	if err != nil {
		return "", mapGatewayError(operation, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("gateway %s: empty choices", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// VisionExtractor reads screenshots with a multimodal model.
type VisionExtractor struct {
	client *Client
}

func NewVisionExtractor(client *Client) *VisionExtractor {
	return &VisionExtractor{client: client}
}

func (e *VisionExtractor) ExtractScreenshot(ctx context.Context, sess domain.Session, image ports.ScreenshotImage) (string, error) {
	if len(image.Data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract screenshot", fmt.Errorf("empty image"))
	}
	mime := image.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data)

	req := chatRequest{
		Model: e.client.cfg.VisionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		User: sess.UserID,
	}
	return e.client.complete(ctx, "extract", e.client.cfg.ExtractionTimeout, req)
}

// ReviewWriter produces the spoken coach review text.
type ReviewWriter struct {
	client *Client
}

func NewReviewWriter(client *Client) *ReviewWriter {
	return &ReviewWriter{client: client}
}

func (w *ReviewWriter) WriteReview(ctx context.Context, sess domain.Session, current, previous string) (string, error) {
	req := chatRequest{
		Model: w.client.cfg.ReviewModel,
		Messages: []chatMessage{
			{Role: "system", Content: reviewSystemPrompt},
			{Role: "user", Content: buildReviewPrompt(current, previous)},
		},
		User: sess.UserID,
	}
	text, err := w.client.complete(ctx, "review", w.client.cfg.ReviewTimeout, req)
	if err != nil {
		return "", err
	}
	if text == "" {
		return noReviewText, nil
	}
	return text, nil
}
