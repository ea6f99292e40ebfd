package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "lingobridge/internal/errors"
	"lingobridge/pkg/chat/types"
)

const webhookStaleAfter = 30 * time.Minute

// HTTPClient implements types.Client against the platform's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu       sync.Mutex
	webhooks map[string]*cachedWebhook // channelID -> identity handle
}

type cachedWebhook struct {
	hook      *types.Webhook
	fetchedAt time.Time
}

// NewHTTPClient creates a platform client for the given API base URL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		webhooks: make(map[string]*cachedWebhook),
	}
}

func (c *HTTPClient) SendPlain(ctx context.Context, channelID, text string) (*types.SendResponse, error) {
	payload := map[string]interface{}{
		"content": text,
	}
	var result types.SendResponse
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/channels/%s/messages", channelID), payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendImpersonated posts under the author's display identity via a cached
// per-channel webhook handle, creating one lazily when absent or stale.
func (c *HTTPClient) SendImpersonated(ctx context.Context, channelID, text, displayName, avatarURL string) (*types.SendResponse, error) {
	hook, err := c.ensureWebhook(ctx, channelID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "failed to obtain channel webhook")
	}

	payload := map[string]interface{}{
		"content":   text,
		"username":  displayName,
		"avatarUrl": avatarURL,
	}

	var result types.SendResponse
	err = c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/webhooks/%s/%s", hook.ID, hook.Token), payload, &result)
	if err != nil {
		// The cached handle may have been deleted out from under us.
		// Invalidate and retry once with a fresh one.
		c.invalidateWebhook(channelID)
		hook, rerr := c.ensureWebhook(ctx, channelID)
		if rerr != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "impersonated send failed")
		}
		if rerr := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/webhooks/%s/%s", hook.ID, hook.Token), payload, &result); rerr != nil {
			return nil, apperrors.Wrap(rerr, apperrors.ErrCodeDeliveryFailed, "impersonated send failed")
		}
	}
	return &result, nil
}

func (c *HTTPClient) ensureWebhook(ctx context.Context, channelID string) (*types.Webhook, error) {
	c.mu.Lock()
	if cached, ok := c.webhooks[channelID]; ok && time.Since(cached.fetchedAt) < webhookStaleAfter {
		hook := cached.hook
		c.mu.Unlock()
		return hook, nil
	}
	c.mu.Unlock()

	var hook types.Webhook
	payload := map[string]interface{}{"name": "lingobridge"}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/channels/%s/webhooks", channelID), payload, &hook); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.webhooks[channelID] = &cachedWebhook{hook: &hook, fetchedAt: time.Now()}
	c.mu.Unlock()
	return &hook, nil
}

func (c *HTTPClient) invalidateWebhook(channelID string) {
	c.mu.Lock()
	delete(c.webhooks, channelID)
	c.mu.Unlock()
}

func (c *HTTPClient) FetchChannel(ctx context.Context, channelID string) (*types.Channel, error) {
	var channel types.Channel
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/channels/%s", channelID), nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *HTTPClient) FetchGuild(ctx context.Context, guildID string) (*types.Guild, error) {
	var guild types.Guild
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/guilds/%s", guildID), nil, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

func (c *HTTPClient) FetchGuildEmojis(ctx context.Context, guildID string) ([]types.Emoji, error) {
	var emojis []types.Emoji
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/guilds/%s/emojis", guildID), nil, &emojis); err != nil {
		return nil, err
	}
	return emojis, nil
}

func (c *HTTPClient) FetchEmoji(ctx context.Context, emojiID string) (*types.Emoji, error) {
	var emoji types.Emoji
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/emojis/%s", emojiID), nil, &emoji); err != nil {
		return nil, err
	}
	return &emoji, nil
}

func (c *HTTPClient) CloneEmoji(ctx context.Context, guildID, imageURL, name string) (string, error) {
	payload := map[string]interface{}{
		"name":     name,
		"imageUrl": imageURL,
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/guilds/%s/emojis", guildID), payload, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (c *HTTPClient) DeleteEmoji(ctx context.Context, guildID, emojiID string) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/guilds/%s/emojis/%s", guildID, emojiID), nil, nil)
}

func (c *HTTPClient) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) RecentMessages(ctx context.Context, channelID string, limit int) ([]types.ChannelMessage, error) {
	var messages []types.ChannelMessage
	path := fmt.Sprintf("/api/channels/%s/messages?limit=%d", channelID, limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bot "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return apperrors.New(apperrors.ErrCodeResourceUnavailable, "permission denied").
			WithContext("path", path)
	}
	if resp.StatusCode == http.StatusConflict {
		return apperrors.New(apperrors.ErrCodeResourceUnavailable, "resource capacity reached").
			WithContext("path", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.New(apperrors.ErrCodePlatformAPI,
			fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
