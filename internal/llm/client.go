package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkaravel/synergo/internal/config"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// ErrMissingAPIKey is a fatal startup condition for any agent that needs the
// completion service.
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY not set in environment or .env")

// Completer is the interface agents consume; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system, user string) (Result, error)
}

// Result is a single completion with its token accounting.
type Result struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client talks to the Anthropic Messages API. No retry, rate limiting, or
// connection pooling beyond the default transport: a failed call is terminal
// for that call and the caller falls back to canned output.
type Client struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	httpClient  *http.Client
}

func NewClient(cfg config.Anthropic) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type messageRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	System      string         `json:"system,omitempty"`
	Messages    []chatMessage  `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a role-defining system prompt and a task prompt, returning
// the generated text.
func (c *Client) Complete(ctx context.Context, system, user string) (Result, error) {
	body := messageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: user}},
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", buf)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("completion request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return Result{}, fmt.Errorf("completion API %d: %s", res.StatusCode, string(b))
	}

	var mr messageResponse
	if err := json.NewDecoder(res.Body).Decode(&mr); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(mr.Content) == 0 {
		return Result{}, errors.New("empty completion response")
	}

	return Result{
		Text:         mr.Content[0].Text,
		Model:        mr.Model,
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
	}, nil
}
