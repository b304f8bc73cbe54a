package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

// Failure is a non-success reply from a provider.
type Failure struct {
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the server's suggested wait, when it sent one.
	RetryAfter time.Duration
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", f.Provider, f.StatusCode, f.Message)
}

// RateLimited reports whether the provider refused the call for quota.
func (f *Failure) RateLimited() bool {
	return f.StatusCode == http.StatusTooManyRequests
}

// StatusCode returns the status carried by err, or 0.
func StatusCode(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.StatusCode
	}
	return 0
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Options tunes a Client.
type Options struct {
	// MaxRetries bounds retries of network errors and 5xx replies.
	// A 429 is never retried here.
	MaxRetries int
	// Backoff is the first retry wait; it doubles per attempt. Default 1s.
	Backoff time.Duration
	// Temperature for sampling. Default 0.3.
	Temperature float64
	// Logger receives debug records. Defaults to slog.Default().
	Logger *slog.Logger
	// HTTPClient overrides the client built from the provider's proxy
	// and timeout.
	HTTPClient *http.Client
}

// Client calls one provider.
type Client struct {
	prov Provider
	opts Options
	http *http.Client
	log  *slog.Logger
}

// New returns a Client for prov.
func New(prov Provider, opts Options) *Client {
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = makeHTTPClient(prov.Proxy, prov.Timeout)
	}
	return &Client{prov: prov, opts: opts, http: hc, log: log.With(slog.String("provider", prov.ID))}
}

// Provider returns the provider configuration.
func (c *Client) Provider() Provider { return c.prov }

// Complete sends the prompts and returns the model's reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch c.prov.ID {
	case ProviderAnthropic:
		return c.callAnthropic(ctx, systemPrompt, userPrompt)
	case ProviderGoogle:
		return c.callHTTP(ctx, systemPrompt, userPrompt, formatGeminiNative)
	case ProviderHuggingFace:
		return c.callHTTP(ctx, systemPrompt, userPrompt, formatHFInference)
	default:
		return c.callHTTP(ctx, systemPrompt, userPrompt, formatOpenAIChat)
	}
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// API formats
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
	formatHFInference                   // HuggingFace text-generation inference
)

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

func buildHFRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type params struct {
		MaxNewTokens   int     `json:"max_new_tokens"`
		Temperature    float64 `json:"temperature"`
		ReturnFullText bool    `json:"return_full_text"`
	}
	req := struct {
		Inputs     string `json:"inputs"`
		Parameters params `json:"parameters"`
	}{
		Inputs:     strings.TrimSpace(systemPrompt + "\n\n" + userPrompt),
		Parameters: params{MaxNewTokens: 512, Temperature: temperature},
	}
	return json.Marshal(req)
}

// buildHTTPRequest constructs the endpoint, headers, and body for a call.
func (c *Client) buildHTTPRequest(systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	prov := c.prov
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	var (
		endpoint string
		body     []byte
		err      error
	)

	baseURL := strings.TrimRight(prov.BaseURL, "/")
	switch format {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", baseURL, prov.Model)
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, c.opts.Temperature)

	case formatHFInference:
		endpoint = baseURL + "/" + prov.Model
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildHFRequest(systemPrompt, userPrompt, c.opts.Temperature)

	default:
		if strings.HasSuffix(baseURL, "/chat/completions") {
			endpoint = baseURL
		} else {
			endpoint = baseURL + "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt, c.opts.Temperature)
	}

	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// ---------------------------------------------------------------------------
// HTTP call with retries
// ---------------------------------------------------------------------------

func (c *Client) callHTTP(ctx context.Context, systemPrompt, userPrompt string, format apiFormat) (string, error) {
	endpoint, headers, body, err := c.buildHTTPRequest(systemPrompt, userPrompt, format)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	maxRetries := c.opts.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		c.log.Debug("calling provider", slog.Int("attempt", attempt+1), slog.String("endpoint", endpoint))

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt < maxRetries && ctx.Err() == nil {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return "", &Failure{
				Provider:   c.prov.ID,
				StatusCode: resp.StatusCode,
				Message:    truncate(string(respBody), 500),
				RetryAfter: retryAfter(resp.Header, respBody),
			}
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", &Failure{
				Provider:   c.prov.ID,
				StatusCode: resp.StatusCode,
				Message:    truncate(string(respBody), 500),
			}
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.opts.Backoff
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// ---------------------------------------------------------------------------
// Response parsers (multi-format)
// ---------------------------------------------------------------------------

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	// HuggingFace text generation: [{"generated_text": "..."}]
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var gen []struct {
			GeneratedText string `json:"generated_text"`
		}
		if err := json.Unmarshal(trimmed, &gen); err != nil {
			return "", fmt.Errorf("invalid JSON response: %w", err)
		}
		if len(gen) == 0 {
			return "", fmt.Errorf("empty generation list")
		}
		return gen[0].GeneratedText, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	// Anthropic over plain HTTP: content[].type=="text" -> .text
	if contentArr, ok := raw["content"].([]any); ok {
		for _, c := range contentArr {
			if block, ok := c.(map[string]any); ok && block["type"] == "text" {
				if text, ok := block["text"].(string); ok {
					return text, nil
				}
			}
		}
	}

	if resp, ok := raw["response"].(string); ok {
		return resp, nil
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// ---------------------------------------------------------------------------
// Rate limit hints
// ---------------------------------------------------------------------------

// retryAfter reads the Retry-After header, then Google's RetryInfo detail.
func retryAfter(h http.Header, body []byte) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return parseRetryDelay(body)
}

// parseRetryDelay extracts the retry delay from a 429 response body.
// Returns 0 when the body carries no hint.
func parseRetryDelay(body []byte) time.Duration {
	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return 0
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000) * time.Millisecond
			}
		}
	}
	return 0
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
