// Package vision is the gateway to an OpenAI-compatible vision model.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/pkg/config"
	"github.com/Proton-105/homebox-bot/pkg/metrics"
)

const (
	gatewayName = "vision"

	MaxNameLength        = 50
	MaxDescriptionLength = 200

	defaultMaxTokens = 500
)

// Completer is the part of the chat completions API the gateway uses.
type Completer interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// AnalyzeRequest is one photo analysis.
type AnalyzeRequest struct {
	Image      []byte
	MIME       string
	Candidates []domain.Location
	Caption    string
	Language   string
	Model      string
}

// Client calls the chat completions endpoint.
type Client struct {
	completions Completer
	maxTokens   int64
	breaker     *apperrors.CircuitBreaker
	log         *slog.Logger
}

// New builds a client for cfg.BaseURL, or the OpenAI API when it is empty.
func New(cfg config.AIConfig, log *slog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)
	return NewWithCompleter(&client.Chat.Completions, cfg.MaxTokens, log)
}

// NewWithCompleter wraps an existing completions service.
func NewWithCompleter(completions Completer, maxTokens int64, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		completions: completions,
		maxTokens:   maxTokens,
		breaker: apperrors.NewCircuitBreaker(gatewayName, func(err error) bool {
			return apperrors.IsGateway(err) && apperrors.IsRetryable(err)
		}),
		log: log.With(slog.String("gateway", gatewayName)),
	}
}

type analysis struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	SuggestedLocation string `json:"suggested_location"`
	Location          string `json:"location"`
}

// Analyze asks the model for a name, description and location for the photo.
// The returned location is the model's answer verbatim and may not be one of the candidates.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (domain.Suggestion, error) {
	mime := req.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(analyzePrompt(req.Language, req.Candidates, req.Caption)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	content, err := c.complete(ctx, "analyze", req.Model, openai.UserMessage(parts))
	if err != nil {
		return domain.Suggestion{}, err
	}

	var out analysis
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return domain.Suggestion{}, apperrors.NewGatewayError(gatewayName, false, fmt.Errorf("malformed analysis: %w", err))
	}

	name := clip(strings.TrimSpace(out.Name), MaxNameLength)
	if name == "" {
		return domain.Suggestion{}, apperrors.NewGatewayError(gatewayName, false, errors.New("analysis without a name"))
	}

	location := out.SuggestedLocation
	if location == "" {
		location = out.Location
	}

	return domain.Suggestion{
		Name:        name,
		Description: clip(strings.TrimSpace(out.Description), MaxDescriptionLength),
		Location:    strings.TrimSpace(location),
	}, nil
}

// Summarize proposes a description for a location from the items filed under it.
func (c *Client) Summarize(ctx context.Context, locationName string, items []domain.ItemSummary, lang, model string) (string, error) {
	content, err := c.complete(ctx, "summarize", model, openai.UserMessage(summarizePrompt(lang, locationName, items)))
	if err != nil {
		return "", err
	}

	text := strings.Trim(strings.TrimSpace(stripFences(content)), `"`)
	if text == "" {
		return "", apperrors.NewGatewayError(gatewayName, false, errors.New("empty summary"))
	}

	return clip(text, MaxDescriptionLength), nil
}

func (c *Client) complete(ctx context.Context, op, model string, msg openai.ChatCompletionMessageParamUnion) (string, error) {
	start := time.Now()
	var content string

	err := c.breaker.Call(func() error {
		resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
			Model:     openai.ChatModel(model),
			Messages:  []openai.ChatCompletionMessageParamUnion{msg},
			MaxTokens: openai.Int(c.maxTokens),
		})
		if err != nil {
			return apperrors.NewGatewayError(gatewayName, retryable(ctx, err), err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return apperrors.NewGatewayError(gatewayName, true, errors.New("no choices in response"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	})

	metrics.ObserveGateway(gatewayName, op, start, err)

	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.NewGatewayError(gatewayName, true, err)
		}
		c.log.Warn("vision call failed", slog.String("op", op), slog.String("model", model), slog.Any("error", err))
		return "", err
	}

	c.log.Debug("vision call done", slog.String("op", op), slog.String("model", model), slog.Duration("duration", time.Since(start)))
	return content, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}

	return true
}

// stripFences removes a surrounding ``` or ```json block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
