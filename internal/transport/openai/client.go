// Package openai adapts an OpenAI-compatible chat completions API to the
// language model capability.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/metrics"
)

// Config holds the model provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	// HighModel serves high reasoning mode, LowModel low mode. LowModel
	// defaults to HighModel.
	HighModel    string
	LowModel     string
	ExtractModel string
	// ReasoningEffort sends the mode as reasoning_effort for models that
	// accept it.
	ReasoningEffort   bool
	MaxTokens         int
	Temperature       float32
	RequestsPerSecond float64
	Burst             int
	User              string
	Logger            *zap.Logger
}

// Client is a chat completions client with client-side rate limiting.
type Client struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a client.
func New(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := *cfg
	if c.LowModel == "" {
		c.LowModel = c.HighModel
	}
	if c.ExtractModel == "" {
		c.ExtractModel = c.LowModel
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if c.RequestsPerSecond > 0 {
		burst := c.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     c,
		limiter: limiter,
		logger:  c.Logger,
	}
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// complete runs one chat completion with rate limiting and metrics.
func (c *Client) complete(ctx context.Context, call string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	// Wait fails early when the deadline would pass before a token frees up.
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ModelErrorsTotal.WithLabelValues(call, req.Model, "rate_limited").Inc()
		if errors.Is(ctx.Err(), context.Canceled) {
			return openai.ChatCompletionResponse{}, fmt.Errorf("rate limiter: %w: %w", domain.ErrModelUnavailable, err)
		}
		return openai.ChatCompletionResponse{}, fmt.Errorf("rate limiter: %w: %w", domain.ErrModelTimeout, err)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		mapped := parseAPIError(err)
		if ctx.Err() != nil {
			mapped = ctxError(ctx, err)
		}
		metrics.ModelRequestsTotal.WithLabelValues(call, req.Model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(call, req.Model, errorType(mapped)).Inc()
		return openai.ChatCompletionResponse{}, mapped
	}
	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(call, req.Model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(call, req.Model, "empty_response").Inc()
		return openai.ChatCompletionResponse{}, fmt.Errorf("empty completion response: %w", domain.ErrModelMalformedResponse)
	}

	metrics.ModelRequestsTotal.WithLabelValues(call, req.Model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(call, req.Model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.ModelTokensTotal.WithLabelValues(req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ModelTokensTotal.WithLabelValues(req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}
	c.logger.Debug("chat completion",
		zap.String("call", call),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp, nil
}

func (c *Client) modelFor(mode llm.Mode) string {
	if mode == llm.ModeHigh {
		return c.cfg.HighModel
	}
	return c.cfg.LowModel
}

func ctxError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrModelTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
}

// parseAPIError maps provider failures onto the model error sentinels:
// 429 is quota exhaustion, everything else is unavailability.
func parseAPIError(err error) error {
	status, detail := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status, detail = apiErr.HTTPStatusCode, apiErr.Message
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			status = http.StatusTooManyRequests
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	default:
		return fmt.Errorf("model request failed: %w: %w", domain.ErrModelUnavailable, err)
	}

	wrap := domain.ErrModelUnavailable
	if status == http.StatusTooManyRequests {
		wrap = domain.ErrModelQuotaExceeded
	}
	return fmt.Errorf("model API error %d: %s: %w", status, detail, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrModelQuotaExceeded):
		return "quota"
	default:
		return "api_error"
	}
}
