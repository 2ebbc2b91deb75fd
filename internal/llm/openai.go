package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"propsim/internal/jsonutil"
)

// OpenAIClient calls an OpenAI-compatible Chat Completions endpoint
// (OpenAI, Azure OpenAI, Groq). Azure endpoints authenticate with an
// api-key header instead of a bearer token.
type OpenAIClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
	azure   bool
}

// NewOpenAIClient creates a client for a chat-completions URL. For Azure,
// pass the full deployment URL including api-version and set azure=true.
func NewOpenAIClient(baseURL, apiKey, model string, azure bool) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	return &OpenAIClient{
		http:    &http.Client{Timeout: 90 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		azure:   azure,
	}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }
func (c *OpenAIClient) CountTokens(text string) int {
	return estimateTokens(text)
}

type chatReq struct {
	Model          string            `json:"model,omitempty"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	in, _ := jsonutil.MarshalIndentNoEscape(req.Input)
	body := chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Prompt},
			{Role: "user", Content: "[INPUT JSON]\n" + string(in)},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		if c.azure {
			httpReq.Header.Set("api-key", c.apiKey)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(payload) > max {
			payload = payload[:max]
		}
		err := fmt.Errorf("openai: unexpected status %s: %s", resp.Status, string(payload))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return "", NewPermanentError(err)
		case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(payload), "context_length_exceeded"):
			return "", NewPermanentError(err)
		}
		return "", err
	}

	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
