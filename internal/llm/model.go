// Package llm provides JSON answer generation on top of langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Generator produces model output for a system and user prompt.
// A nil Generator means answers are built by rules only.
type Generator interface {
	// CompleteJSON returns the JSON object the model produced.
	CompleteJSON(ctx context.Context, system, user string) (map[string]any, error)

	// Stream calls onToken for each output fragment and returns the full text.
	Stream(ctx context.Context, system, user string, onToken func(string) error) (string, error)

	// Model returns the model name reported in response meta.
	Model() string
}

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = errors.New("empty model response")

// Model wraps a langchaingo LLM with rate limiting, timeouts and usage metrics.
type Model struct {
	llm       llms.Model
	modelName string
	limiter   *rate.Limiter
	timeout   time.Duration
	metrics   *metrics.Collector
	logger    *slog.Logger
}

var _ Generator = (*Model)(nil)

// Option configures a Model.
type Option func(*Model)

// WithMetrics records call timings and token usage.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Model) { m.metrics = c }
}

// WithRateLimit allows perSecond calls per second with a burst of one.
// A non-positive value disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(m *Model) {
		if perSecond <= 0 {
			m.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New wraps an existing langchaingo model.
func New(model llms.Model, name string, opts ...Option) *Model {
	m := &Model{
		llm:       model,
		modelName: name,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		timeout:   30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewModel creates a model for the configured provider. It returns nil and
// no error when no provider is configured.
func NewModel(ctx context.Context, cfg config.Config, opts ...Option) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderNone, "":
		return nil, nil

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
			ollama.WithFormat("json"),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	base := []Option{WithTimeout(cfg.LLMTimeout), WithRateLimit(cfg.LLMRatePerSec)}
	return New(model, cfg.LLMModel, append(base, opts...)...), nil
}

// NewGenerator is NewModel returning a nil Generator when generation is
// disabled.
func NewGenerator(ctx context.Context, cfg config.Config, opts ...Option) (Generator, error) {
	m, err := NewModel(ctx, cfg, opts...)
	if err != nil || m == nil {
		return nil, err
	}
	return m, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

func messages(system, user string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
}

func (m *Model) generate(ctx context.Context, op, system, user string, options ...llms.CallOption) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages(system, user), options...)
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordError(op)
		m.logger.Warn("llm call failed", "model", m.modelName, "op", op, "duration_ms", duration.Milliseconds(), "error", err)
		return "", wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	if len(resp.Choices) == 0 {
		m.metrics.RecordError(op)
		return "", ErrEmptyResponse
	}

	choice := resp.Choices[0]
	in, out := usageFrom(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(op, duration, in, out)
	m.logger.Debug("llm call complete", "model", m.modelName, "op", op, "duration_ms", duration.Milliseconds(), "input_tokens", in, "output_tokens", out)
	return choice.Content, nil
}

// CompleteJSON asks for a JSON object and parses it.
func (m *Model) CompleteJSON(ctx context.Context, system, user string) (map[string]any, error) {
	content, err := m.generate(ctx, metrics.OpLLMGenerate, system, user,
		llms.WithJSONMode(),
		llms.WithTemperature(0.2),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}
	return ExtractJSON(content)
}

// Stream generates text and forwards fragments to onToken as they arrive.
func (m *Model) Stream(ctx context.Context, system, user string, onToken func(string) error) (string, error) {
	content, err := m.generate(ctx, metrics.OpLLMStream, system, user,
		llms.WithTemperature(0.2),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}),
	)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// usageFrom reads token counts from provider generation info. OpenAI and
// Ollama report PromptTokens/CompletionTokens, Anthropic and Bedrock
// InputTokens/OutputTokens.
func usageFrom(info map[string]any) (in, out int64) {
	in = firstInt(info, "PromptTokens", "InputTokens", "input_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
