package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"veridia/pkg/prompts"
	"veridia/pkg/session"
	"veridia/pkg/textfilter"
	"veridia/pkg/turn"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	DefaultGeminiTemperature = 0.85
	DefaultGeminiTopP        = 0.95
)

// GeminiService implements Generator and ImageGenerator against the
// Generative Language API. Structured output is enforced through the
// response schema, so replies parse straight into a TurnState.
type GeminiService struct {
	apiKey     string
	modelName  string
	imageModel string
	baseURL    string
	httpClient *http.Client
	builder    *prompts.Builder
	logger     *slog.Logger
}

var _ Generator = (*GeminiService)(nil)
var _ ImageGenerator = (*GeminiService)(nil)

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
	Temperature      *float64               `json:"temperature,omitempty"`
	TopP             *float64               `json:"topP,omitempty"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiService creates a new Gemini-backed generator.
func NewGeminiService(apiKey, modelName, imageModel string, builder *prompts.Builder, logger *slog.Logger) *GeminiService {
	return &GeminiService{
		apiKey:     apiKey,
		modelName:  modelName,
		imageModel: imageModel,
		baseURL:    geminiBaseURL,
		builder:    builder,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// generateContent makes a generateContent request against the given model
// and returns the response parts.
func (g *GeminiService) generateContent(ctx context.Context, model, prompt string, cfg *geminiGenerationConfig) ([]geminiPart, error) {
	geminiReq := geminiGenerateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: cfg,
	}

	reqBody, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiGenerateResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	return geminiResp.Candidates[0].Content.Parts, nil
}

// generateTurn runs a prompt through the turn schema and parses the reply.
func (g *GeminiService) generateTurn(ctx context.Context, prompt string) (*turn.TurnState, error) {
	temperature := DefaultGeminiTemperature
	topP := DefaultGeminiTopP
	cfg := &geminiGenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   turn.ResponseSchema(),
		Temperature:      &temperature,
		TopP:             &topP,
	}

	parts, err := g.generateContent(ctx, g.modelName, prompt, cfg)
	if err != nil {
		return nil, err
	}

	var text string
	for _, part := range parts {
		text += part.Text
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return turn.ParseTurn(textfilter.ExtractJSON(text))
}

// OpeningTurn generates the first scene of a new game.
func (g *GeminiService) OpeningTurn(ctx context.Context) (*turn.TurnState, error) {
	return g.generateTurn(ctx, g.builder.Opening())
}

// NextTurn generates the scene following a player action.
func (g *GeminiService) NextTurn(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
	return g.generateTurn(ctx, g.builder.NextTurn(history, current, action))
}

// SceneImage generates scene art with the image model and returns it as a
// data URI. An empty result with nil error means the model produced no
// image; callers treat both the same way.
func (g *GeminiService) SceneImage(ctx context.Context, description string) (string, error) {
	parts, err := g.generateContent(ctx, g.imageModel, g.builder.SceneImage(description), nil)
	if err != nil {
		return "", err
	}

	for _, part := range parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return fmt.Sprintf("data:%s;base64,%s", mime, part.InlineData.Data), nil
		}
	}

	g.logger.Debug("No inline image in response", "model", g.imageModel)
	return "", nil
}
