package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig holds the settings shared by the completion service and the classifier.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	ClassifierModel string
	Timeout         time.Duration
	MaxRetries      int
	SystemPrompt    string
}

// DefaultOpenAIConfig returns the default configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:           "gpt-4o",
		ClassifierModel: "gpt-4o-mini",
		Timeout:         30 * time.Second,
		MaxRetries:      2,
	}
}

// openAIClient wraps the go-openai client with a per-call timeout and retries.
type openAIClient struct {
	client *openai.Client
	config OpenAIConfig
	log    *zap.Logger
}

func newOpenAIClient(cfg OpenAIConfig, log *zap.Logger) *openAIClient {
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = def.ClassifierModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		log:    log,
	}
}

// chatJSON runs a JSON-object chat completion and returns the raw message content.
func (c *openAIClient) chatJSON(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature float32) (string, error) {
	var content string
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}
	return content, nil
}

// doWithRetry executes fn with a per-attempt timeout and exponential backoff.
func (c *openAIClient) doWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := c.config.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
		c.log.Debug("OpenAI request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait_time", wait),
			zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
