package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/net/html/charset"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/compress"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/expression"
)

var ErrHTTPStatus = errors.New("unexpected http status")

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const TimeoutRequest = 60 * time.Second

// HTTPAction sends one request per invocation.
//
// Config: method (GET), url, headers, query, body, timeoutMs, failOnStatus.
// Output: status, headers, body (decoded JSON when the payload is JSON), duration.
type HTTPAction struct {
	Client HttpClient
}

func (a *HTTPAction) Invoke(ctx context.Context, cfg map[string]any, _ *Request) (map[string]any, error) {
	rawURL := strings.TrimSpace(expression.ToString(cfg["url"]))
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	method := strings.ToUpper(strings.TrimSpace(expression.ToString(cfg["method"])))
	if method == "" {
		method = http.MethodGet
	}

	if ms, ok := expression.ToInt(cfg["timeoutMs"]); ok && ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	body, contentType, err := encodeBody(cfg["body"])
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if q, ok := cfg["query"].(map[string]any); ok {
		values := httpReq.URL.Query()
		addQuery(values, q)
		httpReq.URL.RawQuery = values.Encode()
	}
	if h, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range h {
			httpReq.Header.Set(k, expression.ToString(v))
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: TimeoutRequest}
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	output := map[string]any{
		"status":   resp.StatusCode,
		"headers":  headers,
		"body":     decodePayload(payload),
		"duration": time.Since(start).Milliseconds(),
	}

	if failOnStatus, _ := expression.ToBool(cfg["failOnStatus"]); failOnStatus && resp.StatusCode >= http.StatusBadRequest {
		return output, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	return output, nil
}

func encodeBody(v any) ([]byte, string, error) {
	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "", nil
	case []byte:
		return b, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("%w: body: %w", ErrInvalidConfig, err)
		}
		return data, "application/json", nil
	}
}

func addQuery(values url.Values, q map[string]any) {
	for k, v := range q {
		if items, ok := expression.AsSlice(v); ok {
			for _, item := range items {
				values.Add(k, expression.ToString(item))
			}
			continue
		}
		values.Add(k, expression.ToString(v))
	}
}

// readBody undoes any content encoding the transport left in place and
// converts the payload to UTF-8 based on the declared charset.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if encoding := strings.ToLower(resp.Header.Get("Content-Encoding")); encoding != "" && !resp.Uncompressed {
		body, err = compress.DecodeContent(body, encoding)
		if err != nil {
			return nil, err
		}
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		reader, err := charset.NewReader(bytes.NewReader(body), contentType)
		if err == nil {
			if converted, err := io.ReadAll(reader); err == nil {
				body = converted
			}
		}
	}
	return body, nil
}

func decodePayload(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	if !json.Valid(body) {
		return string(body)
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return string(body)
	}
	return decoded
}
