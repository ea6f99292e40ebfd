package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"lingobridge/internal/constants"
	apperrors "lingobridge/internal/errors"
	"lingobridge/internal/models"
)

const systemPromptTemplate = "You are a translator for a chat community. Translate the user's message from %s to %s. " +
	"Preserve tone, slang, formatting, and any <...> platform tokens exactly as written. " +
	"Use the conversation context only to resolve ambiguity. Reply with the translation only."

// ContextClient calls an OpenAI-style chat-completions endpoint for
// context-aware translation.
type ContextClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewContextClient creates the primary translator client.
func NewContextClient(baseURL, apiKey, model string, timeout time.Duration) *ContextClient {
	return &ContextClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *ContextClient) TranslateWithContext(ctx context.Context, text, sourceLang, targetLang string, contextMsgs []ContextMessage) (string, string, error) {
	if !models.IsSupportedSourceLanguage(sourceLang) {
		return "", "", apperrors.New(apperrors.ErrCodeValidationFailed, fmt.Sprintf("unsupported source language: %s", sourceLang))
	}
	if !models.IsSupportedLanguage(targetLang) {
		return "", "", apperrors.New(apperrors.ErrCodeValidationFailed, fmt.Sprintf("unsupported target language: %s", targetLang))
	}

	sourceName := models.LanguageName(sourceLang)
	if strings.EqualFold(sourceLang, models.LanguageAuto) {
		sourceName = "the detected language"
	}

	messages := []chatMessage{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, sourceName, models.LanguageName(targetLang))},
	}
	if prompt := buildContextPrompt(contextMsgs); prompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}
	prompt := string(jsonData)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", prompt, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", prompt, apperrors.WrapRetryable(err, apperrors.ErrCodeTranslationTimeout, "primary translator timed out")
		}
		return "", prompt, apperrors.WrapRetryable(err, apperrors.ErrCodeTranslationProvider, "primary translator request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", prompt, apperrors.WrapRetryable(err, apperrors.ErrCodeTranslationProvider, "failed to read translator response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", prompt, apperrors.WrapRetryable(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300)),
			apperrors.ErrCodeTranslationProvider, "primary translator returned an error")
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", prompt, apperrors.WrapRetryable(err, apperrors.ErrCodeTranslationProvider, "failed to decode translator response")
	}
	if completion.Error != nil {
		return "", prompt, apperrors.WrapRetryable(
			fmt.Errorf("%s", completion.Error.Message),
			apperrors.ErrCodeTranslationProvider, "primary translator returned an error")
	}
	if len(completion.Choices) == 0 {
		return "", prompt, apperrors.WrapRetryable(
			fmt.Errorf("empty choices"),
			apperrors.ErrCodeTranslationProvider, "primary translator returned no translation")
	}

	translated := strings.TrimSpace(completion.Choices[0].Message.Content)
	if translated == "" {
		return "", prompt, apperrors.WrapRetryable(
			fmt.Errorf("empty translation"),
			apperrors.ErrCodeTranslationProvider, "primary translator returned no translation")
	}

	return translated, prompt, nil
}

// buildContextPrompt renders preceding messages into a bounded context
// block. Fragments are clipped so a noisy channel cannot blow up the prompt.
func buildContextPrompt(msgs []ContextMessage) string {
	if len(msgs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent conversation, oldest first:\n")
	for _, m := range msgs {
		content := m.Content
		if len(content) > constants.DefaultContextFragmentLength {
			content = content[:constants.DefaultContextFragmentLength]
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.AuthorName, content)
	}
	return sb.String()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
