package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Analyzer answers one insights request. Client is the production
// implementation.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	provider    Provider
	limiter     *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	timeout     time.Duration
	tokenBudget int
	tokenizer   Tokenizer
	cache       *ResponseCache
	logger      *slog.Logger
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
	}
}

// WithBackoff sets the base delay; attempt n waits n times this long.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit allows requestsPerMinute requests with the given burst. A
// non-positive rate disables limiting.
func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(burst, 1))
	}
}

// WithTokenBudget truncates request content to maxTokens. A nil tokenizer
// uses a rune-count estimate.
func WithTokenBudget(maxTokens int, tokenizer Tokenizer) Option {
	return func(c *Client) {
		c.tokenBudget = maxTokens
		c.tokenizer = tokenizer
	}
}

// WithCache reuses completions for identical requests.
func WithCache(cache *ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		limiter:    rate.NewLimiter(rate.Limit(1), 1), // 60 req/min
		maxRetries: 3,
		backoff:    time.Second,
		timeout:    60 * time.Second,
		logger:     slog.Default().With("component", "insights"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenBudget > 0 && c.tokenizer == nil {
		c.tokenizer = approxTokenizer{}
	}

	c.logger.Debug("Insights client initialized",
		"provider", provider.Name(),
		"max_retries", c.maxRetries,
		"token_budget", c.tokenBudget,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))
	return c
}

// Analyze sends the request and returns the model's JSON payload. On
// failure the returned Response carries the error text and the error wraps
// ErrUnavailable.
func (c *Client) Analyze(ctx context.Context, req Request) (*Response, error) {
	if !req.AnalysisType.Valid() {
		return &Response{Error: "unknown analysis type"}, fmt.Errorf("unknown analysis type %q", req.AnalysisType)
	}
	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID, "analysis_type", req.AnalysisType)
	start := time.Now()

	if c.tokenBudget > 0 {
		if n := c.tokenizer.Count(req.Content); n > c.tokenBudget {
			req.Content = c.tokenizer.Truncate(req.Content, c.tokenBudget)
			logger.Debug("Truncated request content",
				"tokens", n,
				"token_budget", c.tokenBudget)
		}
	}

	user, err := json.Marshal(req)
	if err != nil {
		return &Response{Error: err.Error()}, fmt.Errorf("marshaling request: %w", err)
	}

	system := systemPrompt(req.AnalysisType)
	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, c.provider.Name(), system, string(user)); ok {
			logger.Info("Insights served from cache", "response_length", len(text))
			return &Response{Success: true, Data: json.RawMessage(text)}, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Error("Rate limit wait failed", "error", err)
		return &Response{Error: err.Error()}, fmt.Errorf("%w: rate limit wait: %w", ErrUnavailable, err)
	}

	text, err := c.complete(ctx, logger, system, string(user))
	if err != nil {
		return &Response{Error: err.Error()}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, c.provider.Name(), system, string(user), text); err != nil {
			logger.Warn("Caching insights response failed", "error", err)
		}
	}

	logger.Info("Insights request completed",
		"provider", c.provider.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(text))
	return &Response{Success: true, Data: json.RawMessage(text)}, nil
}

func (c *Client) complete(ctx context.Context, logger *slog.Logger, system, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			logger.Debug("Retry backoff",
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				logger.Warn("Request cancelled during backoff", "attempt", attempt)
				return "", ctx.Err()
			}
		}

		text, err := c.attempt(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			logger.Error("Insights request failed with non-retryable error",
				"attempt", attempt,
				"error", err)
			return "", err
		}
		logger.Warn("Insights request failed, will retry",
			"attempt", attempt,
			"error", err)
	}

	logger.Error("Insights request failed after max retries",
		"max_retries", c.maxRetries,
		"last_error", lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	text, err := c.provider.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	text = cleanJSON(text)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	if !json.Valid([]byte(text)) {
		return "", errors.New("model returned invalid JSON")
	}
	return text, nil
}

// cleanJSON strips the ```json fence some models wrap around output and any
// prose before or after the outermost object or array.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return s
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		return s[start : end+1]
	}
	return s
}

const jsonInstruction = `Respond with a single JSON object of the form {"suggestions":[{"subject":"<node id or empty>","detail":"<text>","confidence":<0..1>}]} and nothing else.`

func systemPrompt(t AnalysisType) string {
	var task string
	switch t {
	case CharacterTags:
		task = "You label fiction characters. For each character node, suggest short descriptive tags (archetype, temperament, narrative function)."
	case RelationshipSuggestions:
		task = "You study the cast of a story. Suggest relationships between character nodes that the text implies but the edges do not record."
	case NarrativeCoherence:
		task = "You are a developmental editor. Point out places where the chapters read as incoherent: unexplained shifts, dropped threads, contradictions."
	}
	return task + "\n\n" + jsonInstruction
}
