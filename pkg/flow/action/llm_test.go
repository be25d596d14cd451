package action_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt, options)
	return args.String(0), args.Error(1)
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages, options)
	return args.Get(0).(*llms.ContentResponse), args.Error(1)
}

func TestLLMAction(t *testing.T) {
	mm := new(mockModel)
	mm.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "a summary"}},
	}, nil).Once()

	var gotCfg action.ModelConfig
	a := &action.LLMAction{Factory: func(_ context.Context, cfg action.ModelConfig) (llms.Model, error) {
		gotCfg = cfg
		return mm, nil
	}}

	out, err := a.Invoke(context.Background(), map[string]any{
		"model":       "gpt-4o-mini",
		"prompt":      "summarize this",
		"apiKey":      "k",
		"temperature": 0.2,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "a summary", out["text"])
	require.Equal(t, action.ModelConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, gotCfg)
	mm.AssertExpectations(t)
}

func TestLLMAction_Validation(t *testing.T) {
	a := &action.LLMAction{}
	_, err := a.Invoke(context.Background(), map[string]any{"prompt": " "}, nil)
	require.ErrorIs(t, err, action.ErrInvalidConfig)

	_, err = action.OpenAIModelFactory(context.Background(), action.ModelConfig{Provider: "acme"})
	require.ErrorIs(t, err, action.ErrInvalidConfig)
}
