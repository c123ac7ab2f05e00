package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lead-harvester/utils"
)

// ErrNoBackend is returned when every configured backend failed.
var ErrNoBackend = errors.New("no classifier backend available")

// TextClassifier returns a model's raw completion for prompt.
type TextClassifier interface {
	Name() string
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendOptions configures the HTTP backends.
type BackendOptions struct {
	OllamaURL         string
	XAIURL            string
	XAIAPIKey         string
	RequestsPerSecond float64
	Timeout           time.Duration
	Client            *http.Client
}

func (o BackendOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o BackendOptions) limiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), 1)
}

// httpBackend holds what the Ollama and xAI clients share.
type httpBackend struct {
	name    string
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	headers map[string]string
}

func (b *httpBackend) Name() string { return b.name }

func (b *httpBackend) do(ctx context.Context, method, path string, payload, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", b.name, err)
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", b.name, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", b.name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", b.name, err)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaBackend talks to a local Ollama server's chat endpoint in JSON mode.
type OllamaBackend struct {
	httpBackend
}

// NewOllamaBackend builds an Ollama client.
func NewOllamaBackend(opts BackendOptions) *OllamaBackend {
	base := opts.OllamaURL
	if base == "" {
		base = "http://localhost:11434"
	}
	return &OllamaBackend{httpBackend{
		name:    "ollama",
		client:  opts.client(),
		baseURL: strings.TrimRight(base, "/"),
		limiter: opts.limiter(),
	}}
}

func (b *OllamaBackend) Complete(ctx context.Context, prompt, model string) (string, error) {
	payload := map[string]any{
		"model":    model,
		"messages": []chatMessage{{Role: "user", Content: prompt}},
		"format":   "json",
		"stream":   false,
		"options":  map[string]any{"temperature": 0},
	}
	var resp struct {
		Message chatMessage `json:"message"`
	}
	if err := b.do(ctx, http.MethodPost, "/api/chat", payload, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (b *OllamaBackend) Ping(ctx context.Context) error {
	return b.do(ctx, http.MethodGet, "/api/tags", nil, nil)
}

// XAIBackend talks to the xAI OpenAI-compatible chat completions API.
type XAIBackend struct {
	httpBackend
	apiKey string
}

// NewXAIBackend builds an xAI client. A missing key fails at call time.
func NewXAIBackend(opts BackendOptions) *XAIBackend {
	base := opts.XAIURL
	if base == "" {
		base = "https://api.x.ai/v1"
	}
	return &XAIBackend{
		httpBackend: httpBackend{
			name:    "xai",
			client:  opts.client(),
			baseURL: strings.TrimRight(base, "/"),
			limiter: opts.limiter(),
			headers: map[string]string{"Authorization": "Bearer " + opts.XAIAPIKey},
		},
		apiKey: opts.XAIAPIKey,
	}
}

func (b *XAIBackend) Complete(ctx context.Context, prompt, model string) (string, error) {
	if b.apiKey == "" {
		return "", errors.New("xai: XAI_API_KEY is not set")
	}
	payload := map[string]any{
		"model":       model,
		"stream":      false,
		"temperature": 0,
		"messages":    []chatMessage{{Role: "user", Content: prompt}},
	}
	var resp struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := b.do(ctx, http.MethodPost, "/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("xai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *XAIBackend) Ping(ctx context.Context) error {
	if b.apiKey == "" {
		return errors.New("xai: XAI_API_KEY is not set")
	}
	return b.do(ctx, http.MethodGet, "/models", nil, nil)
}

// FallbackChain tries backends in a fixed order and returns the first
// completion that succeeds.
type FallbackChain struct {
	backends []TextClassifier
	logger   *utils.Logger
}

// NewFallbackChain wraps backends in order.
func NewFallbackChain(logger *utils.Logger, backends ...TextClassifier) *FallbackChain {
	return &FallbackChain{backends: backends, logger: logger}
}

// BuildChain creates backends for the named providers ("ollama", "xai").
// Unknown names are logged and skipped.
func BuildChain(providers []string, opts BackendOptions, logger *utils.Logger) *FallbackChain {
	var backends []TextClassifier
	for _, p := range providers {
		switch p {
		case "ollama":
			backends = append(backends, NewOllamaBackend(opts))
		case "xai", "grok":
			backends = append(backends, NewXAIBackend(opts))
		default:
			logger.Warn("[classifier] Unknown LLM provider %q ignored", p)
		}
	}
	return NewFallbackChain(logger, backends...)
}

func (c *FallbackChain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ">")
}

func (c *FallbackChain) Complete(ctx context.Context, prompt, model string) (string, error) {
	var errs []error
	for _, b := range c.backends {
		out, err := b.Complete(ctx, prompt, model)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Debug("[classifier] backend %s failed: %v", b.Name(), err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoBackend
	}
	return "", fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// Ping reports healthy when at least one backend answers.
func (c *FallbackChain) Ping(ctx context.Context) error {
	var errs []error
	for _, b := range c.backends {
		p, ok := b.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrNoBackend
	}
	return fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}
