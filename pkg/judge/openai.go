package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// OpenAIJudge talks to an OpenAI-compatible chat-completions endpoint.
// Sampling is pinned (temperature 0, fixed seed) so repeat judgments of the
// same submission stay as stable as the upstream model allows.
type OpenAIJudge struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
}

// Option configures the judge client.
type Option func(*OpenAIJudge)

// WithTimeout overrides the per-call HTTP timeout. Non-positive values
// keep the default.
func WithTimeout(d time.Duration) Option {
	return func(j *OpenAIJudge) {
		if d > 0 {
			j.client.Timeout = d
		}
	}
}

// NewOpenAIJudge creates a judge client. baseURL defaults to the OpenAI
// API; any compatible endpoint (LM Studio, vLLM) works.
func NewOpenAIJudge(baseURL, apiKey, model string, opts ...Option) *OpenAIJudge {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	j := &OpenAIJudge{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	Seed           int64         `json:"seed"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ProduceJudgment implements engine.Judge.
func (c *OpenAIJudge) ProduceJudgment(ctx context.Context, subject *engine.Subject, r *rubric.Rubric) ([]byte, error) {
	system, user, err := buildPrompt(subject, r)
	if err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		Seed:        7,
	}
	reqBody.ResponseFormat.Type = "json_object"

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("judge: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter before each retry.
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		raw, err := c.call(ctx, jsonBody)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("judge: %w", lastErr)
}

func (c *OpenAIJudge) call(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("judge endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("judge returned no choices")
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}
