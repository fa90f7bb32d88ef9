package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/quizreport/internal/llm/prompts"
	"github.com/pavelanni/quizreport/internal/model"
	"github.com/pavelanni/quizreport/internal/report"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxItems = 3
	defaultTimeout  = 20 * time.Second
)

// Advice is the JSON object the model is asked to return.
type Advice struct {
	Recommendations []string `json:"recommendations"`
}

// Options tune the generated advice.
type Options struct {
	Variant  string
	Language string
	MaxItems int
	Timeout  time.Duration
}

var _ report.Advisor = (*Client)(nil)

// Client wraps an OpenAI-compatible API client and implements report.Advisor.
type Client struct {
	api      *openai.Client
	model    string
	variant  prompts.PromptVariant
	language string
	maxItems int
	timeout  time.Duration
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts Options) (*Client, error) {
	if modelName == "" {
		return nil, fmt.Errorf("LLM model name is required")
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	variant := prompts.PromptStandard
	if opts.Variant != "" {
		if !prompts.IsValidVariant(opts.Variant) {
			return nil, fmt.Errorf("invalid prompt variant %q", opts.Variant)
		}
		variant = prompts.PromptVariant(opts.Variant)
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = defaultMaxItems
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		variant:  variant,
		language: opts.Language,
		maxItems: opts.MaxItems,
		timeout:  opts.Timeout,
	}, nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Recommend asks the model for study advice tailored to the submission.
func (c *Client) Recommend(ctx context.Context, sub model.Submission, a report.Analysis) ([]string, error) {
	prompt, err := prompts.BuildRecommendPrompt(c.variant, sub, a, c.maxItems, c.language)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "submission_id", model.SubmissionIDFromContext(ctx), "raw", raw)

	lines, err := parseAdvice(raw, c.maxItems)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func parseAdvice(raw string, maxItems int) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var advice Advice
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &advice); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	var lines []string
	for _, r := range advice.Recommendations {
		r = strings.Join(strings.Fields(r), " ")
		if r == "" {
			continue
		}
		lines = append(lines, r)
		if len(lines) == maxItems {
			break
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("LLM returned no recommendations")
	}
	return lines, nil
}
