package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
)

const ProviderOpenAI = "openai"

// ModelConfig selects the model an llm.prompt invocation talks to.
type ModelConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type ModelFactory func(ctx context.Context, cfg ModelConfig) (llms.Model, error)

// OpenAIModelFactory builds OpenAI-compatible models. An empty APIKey falls
// back to the OPENAI_API_KEY environment variable.
func OpenAIModelFactory(_ context.Context, cfg ModelConfig) (llms.Model, error) {
	if cfg.Provider != ProviderOpenAI {
		return nil, fmt.Errorf("%w: unsupported llm provider %q", ErrInvalidConfig, cfg.Provider)
	}
	var opts []openai.Option
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

// LLMAction sends a single prompt and returns the completion text.
//
// Config: provider (openai), model, prompt, apiKey, baseUrl, temperature, maxTokens.
type LLMAction struct {
	Factory ModelFactory
}

func (a *LLMAction) Invoke(ctx context.Context, cfg map[string]any, _ *Request) (map[string]any, error) {
	prompt := expression.ToString(cfg["prompt"])
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidConfig)
	}

	mc := ModelConfig{
		Provider: strings.ToLower(expression.ToString(cfg["provider"])),
		Model:    expression.ToString(cfg["model"]),
		APIKey:   expression.ToString(cfg["apiKey"]),
		BaseURL:  expression.ToString(cfg["baseUrl"]),
	}
	if mc.Provider == "" {
		mc.Provider = ProviderOpenAI
	}

	factory := a.Factory
	if factory == nil {
		factory = OpenAIModelFactory
	}
	model, err := factory(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}

	var callOpts []llms.CallOption
	if t, ok := expression.ToFloat(cfg["temperature"]); ok {
		callOpts = append(callOpts, llms.WithTemperature(t))
	}
	if n, ok := expression.ToInt(cfg["maxTokens"]); ok && n > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(n))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return map[string]any{
		"text":     text,
		"model":    mc.Model,
		"provider": mc.Provider,
	}, nil
}
