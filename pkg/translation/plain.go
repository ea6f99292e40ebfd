package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "lingobridge/internal/errors"
	"lingobridge/internal/models"
)

// PlainClient calls a LibreTranslate-style endpoint for the fallback path:
// single attempt, no conversational context.
type PlainClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPlainClient creates the secondary translator client.
func NewPlainClient(baseURL, apiKey string, timeout time.Duration) *PlainClient {
	return &PlainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type plainRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type plainResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (c *PlainClient) TranslatePlain(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if !models.IsSupportedSourceLanguage(sourceLang) {
		return "", apperrors.New(apperrors.ErrCodeValidationFailed, fmt.Sprintf("unsupported source language: %s", sourceLang))
	}
	if !models.IsSupportedLanguage(targetLang) {
		return "", apperrors.New(apperrors.ErrCodeValidationFailed, fmt.Sprintf("unsupported target language: %s", targetLang))
	}

	jsonData, err := json.Marshal(plainRequest{
		Q:      text,
		Source: strings.ToLower(sourceLang),
		Target: strings.ToLower(targetLang),
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationProvider, "secondary translator request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationProvider, "failed to read translator response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300)),
			apperrors.ErrCodeTranslationProvider, "secondary translator returned an error")
	}

	var result plainResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationProvider, "failed to decode translator response")
	}
	if result.Error != "" {
		return "", apperrors.Wrap(fmt.Errorf("%s", result.Error),
			apperrors.ErrCodeTranslationProvider, "secondary translator returned an error")
	}
	if strings.TrimSpace(result.TranslatedText) == "" {
		return "", apperrors.Wrap(fmt.Errorf("empty translation"),
			apperrors.ErrCodeTranslationProvider, "secondary translator returned no translation")
	}

	return result.TranslatedText, nil
}
