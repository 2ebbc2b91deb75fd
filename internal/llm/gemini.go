package llm

import (
	"context"

	genai "google.golang.org/genai"

	"propsim/internal/jsonutil"
)

// GeminiClient is a thin wrapper around the official genai client. The API
// key is read from the environment by the genai SDK.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }
func (g *GeminiClient) CountTokens(text string) int {
	return estimateTokens(text)
}

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	in, _ := jsonutil.MarshalIndentNoEscape(req.Input)
	full := req.Prompt + "\n\n[INPUT JSON]\n" + string(in)

	cfg := &genai.GenerateContentConfig{}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}}, cfg)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
