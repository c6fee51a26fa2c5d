package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/johns/daylog/internal/config"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a client from config. The API key comes from the
// configured environment variable; an empty key yields a disabled client.
func NewClient(cfg config.NarrativeConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		model:   cfg.Model,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether remote calls can be made at all.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// BaseURL returns the endpoint base, for the reachability probe.
func (c *Client) BaseURL() string { return c.baseURL }

// statusError keeps the HTTP status visible to the retry classifier.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.code, e.body)
}

// Complete performs one chat-completions call and returns the raw content
// string plus token usage.
func (c *Client) Complete(ctx context.Context, system, user string) (string, Usage, error) {
	var usage Usage

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.3,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", usage, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", usage, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", usage, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", usage, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", usage, fmt.Errorf("unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return "", usage, fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", usage, fmt.Errorf("empty choices in response")
	}

	if cr.Usage != nil {
		usage.Input = cr.Usage.PromptTokens
		usage.Output = cr.Usage.CompletionTokens
		if cr.Usage.PromptDetails != nil {
			usage.Cached = cr.Usage.PromptDetails.CachedTokens
		}
	}
	return cr.Choices[0].Message.Content, usage, nil
}

// decodeContent unmarshals the model's content into v, tolerating prose
// around the JSON by falling back to the first balanced object.
func decodeContent(content string, v any) error {
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	block := firstJSONObject(content)
	if block == "" {
		return fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("unmarshal model output: %w", err)
	}
	return nil
}

func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
