package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"veridia/pkg/prompts"
	"veridia/pkg/session"
	"veridia/pkg/textfilter"
	"veridia/pkg/turn"
)

// OllamaService implements Generator against a local Ollama instance.
// There is no image model; scene art is simply skipped offline.
type OllamaService struct {
	baseURL    string
	modelName  string
	httpClient *http.Client
	builder    *prompts.Builder
	logger     *slog.Logger
}

var _ Generator = (*OllamaService)(nil)

// NewOllamaService creates a new Ollama service instance.
func NewOllamaService(baseURL, modelName string, builder *prompts.Builder, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		baseURL:   baseURL,
		modelName: modelName,
		builder:   builder,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// InitModel checks the model is available, pulling it if necessary.
func (s *OllamaService) InitModel(ctx context.Context) error {
	s.logger.Info("Initializing LLM model", "model", s.modelName)

	ready, err := s.isModelReady(ctx)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}

	if !ready {
		s.logger.Info("Model not found, pulling it", "model", s.modelName)
		if err := s.pullModel(ctx); err != nil {
			return fmt.Errorf("failed to pull model: %w", err)
		}
		s.logger.Info("Model pulled successfully", "model", s.modelName)
	}

	return nil
}

// generateTurn runs a prompt in JSON mode and parses the reply. Ollama
// enforces the schema as a structured-output format.
func (s *OllamaService) generateTurn(ctx context.Context, prompt string) (*turn.TurnState, error) {
	reqBody := map[string]interface{}{
		"model": s.modelName,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"format": turn.ResponseSchema(),
		"stream": false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Ollama API returned error", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var ollamaResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return turn.ParseTurn(textfilter.ExtractJSON(ollamaResp.Message.Content))
}

// OpeningTurn generates the first scene of a new game.
func (s *OllamaService) OpeningTurn(ctx context.Context) (*turn.TurnState, error) {
	return s.generateTurn(ctx, s.builder.Opening())
}

// NextTurn generates the scene following a player action.
func (s *OllamaService) NextTurn(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
	return s.generateTurn(ctx, s.builder.NextTurn(history, current, action))
}

// isModelReady checks if the configured model is available.
func (s *OllamaService) isModelReady(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if model.Name == s.modelName {
			return true, nil
		}
	}
	return false, nil
}

// pullModel pulls the configured model from Ollama.
func (s *OllamaService) pullModel(ctx context.Context) error {
	jsonBody, err := json.Marshal(map[string]string{"name": s.modelName})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/pull", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulling can take a while; use a dedicated client with a long timeout.
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	return nil
}
