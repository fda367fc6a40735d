// Package gemini provides the Google Gemini integration for recipe and
// substitution generation
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nuggs-ai/nuggs/internal/infrastructure/config"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// Client implements the GenerationClient interface using the Gemini
// generateContent API
type Client struct {
	apiKey  string
	baseURL string
	model   string
	genCfg  GenerationConfig
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg *config.Config, logger *zap.Logger) outbound.GenerationClient {
	return &Client{
		apiKey:  cfg.Gemini.APIKey,
		baseURL: cfg.Gemini.BaseURL,
		model:   cfg.Gemini.Model,
		genCfg: GenerationConfig{
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxTokens,
			TopP:            cfg.Gemini.TopP,
			TopK:            cfg.Gemini.TopK,
		},
		client: &http.Client{
			Timeout: cfg.Gemini.Timeout,
		},
		logger: logger,
	}
}

// Gemini API structures

type GenerateContentRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	Error          *APIError       `json:"error,omitempty"`
}

type Candidate struct {
	Content Content `json:"content"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate sends one prompt to the generateContent endpoint and returns the
// raw response text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", apperrors.NewNotConfiguredError("Gemini API key")
	}

	reqBody := GenerateContentRequest{
		Contents: []Content{
			{
				Role:  "user",
				Parts: []Part{{Text: prompt}},
			},
		},
		GenerationConfig: c.genCfg,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode generation request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to build generation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalServiceError("gemini", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewExternalServiceError("gemini", err)
	}

	var parsed GenerateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperrors.NewExternalServiceError("gemini", err)
	}

	if resp.StatusCode != http.StatusOK {
		details := string(body)
		if parsed.Error != nil {
			details = parsed.Error.Message
		}
		c.logger.Error("gemini request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("details", details),
		)
		return "", apperrors.New(
			apperrors.CodeExternalServiceError,
			"Generation request failed",
			details,
		).WithMetadata("upstream_status", resp.StatusCode)
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", apperrors.NewPromptBlockedError(parsed.PromptFeedback.BlockReason)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.New(
			apperrors.CodeExternalServiceError,
			"Generation request failed",
			"response contained no candidates",
		)
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
