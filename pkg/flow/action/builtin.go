package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
)

const (
	KindNoop     = "noop"
	KindDelay    = "delay"
	KindLog      = "log"
	KindFail     = "fail"
	KindEvaluate = "evaluate"
	KindHTTP     = "http.request"
	KindLLM      = "llm.prompt"
)

type options struct {
	httpClient HttpClient
	llmFactory ModelFactory
}

type Option func(*options)

// WithHTTPClient replaces the client used by http.request.
func WithHTTPClient(c HttpClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithModelFactory replaces how llm.prompt obtains its model.
func WithModelFactory(f ModelFactory) Option {
	return func(o *options) { o.llmFactory = f }
}

// NewDefaultRegistry returns a registry with every built-in action.
func NewDefaultRegistry(opts ...Option) *Registry {
	o := options{
		httpClient: &http.Client{Timeout: TimeoutRequest},
		llmFactory: OpenAIModelFactory,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := NewRegistry()
	r.Replace(KindNoop, Func(Noop))
	r.Replace(KindDelay, Func(Delay))
	r.Replace(KindLog, Func(Log))
	r.Replace(KindFail, Func(Fail))
	r.Replace(KindEvaluate, Func(Evaluate))
	r.Replace(KindHTTP, &HTTPAction{Client: o.httpClient})
	r.Replace(KindLLM, &LLMAction{Factory: o.llmFactory})
	return r
}

func Noop(context.Context, map[string]any, *Request) (map[string]any, error) {
	return map[string]any{}, nil
}

// Delay waits for cfg.ms milliseconds or until ctx is done.
func Delay(ctx context.Context, cfg map[string]any, _ *Request) (map[string]any, error) {
	ms, _ := expression.ToInt(cfg["ms"])
	if ms < 0 {
		return nil, fmt.Errorf("%w: ms must not be negative", ErrInvalidConfig)
	}
	if ms > 0 {
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return map[string]any{"ms": ms}, nil
}

func Log(ctx context.Context, cfg map[string]any, req *Request) (map[string]any, error) {
	message := expression.ToString(cfg["message"])
	level := slog.LevelInfo
	switch strings.ToLower(expression.ToString(cfg["level"])) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var nodeID string
	if req != nil {
		nodeID = req.NodeID
	}
	req.logger().Log(ctx, level, message, slog.String("node_id", nodeID))
	return map[string]any{"message": message}, nil
}

// Fail always fails. With cancel=true it cancels the whole run instead.
func Fail(_ context.Context, cfg map[string]any, _ *Request) (map[string]any, error) {
	message := expression.ToString(cfg["message"])
	if message == "" {
		message = "failed by fail action"
	}
	if cancel, _ := expression.ToBool(cfg["cancel"]); cancel {
		return nil, fmt.Errorf("%w: %s", runner.ErrFlowCanceledByThrow, message)
	}
	return nil, fmt.Errorf("%w: %s", ErrActionFailed, message)
}

// Evaluate runs an expr-lang expression against the namespace. The
// expression is read from the authored config; embedded bindings are
// substituted as literals rather than interpolated as text.
func Evaluate(ctx context.Context, cfg map[string]any, req *Request) (map[string]any, error) {
	if req == nil || req.Env == nil {
		return nil, ErrMissingRequest
	}
	raw := req.RawConfig
	if raw == nil {
		raw = cfg
	}
	exprStr, ok := raw["expression"].(string)
	if !ok || strings.TrimSpace(exprStr) == "" {
		return nil, fmt.Errorf("%w: expression is required", ErrInvalidConfig)
	}
	value, err := req.Env.Eval(ctx, req.Env.SubstituteLiterals(exprStr))
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": value}, nil
}
