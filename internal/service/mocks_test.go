package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"lingobridge/internal/audit"
	"lingobridge/pkg/chat/types"
	"lingobridge/pkg/translation"
)

var errNotFound = errors.New("not found")

// Mock chat client. Fields configure responses; calls are recorded under a
// mutex because queues and fan-out goroutines hit it concurrently.
type mockChatClient struct {
	mu sync.Mutex

	sendPlainResp        *types.SendResponse
	sendPlainErr         error
	sendImpersonatedResp *types.SendResponse
	sendImpersonatedErr  error

	channels     map[string]*types.Channel
	guilds       map[string]*types.Guild
	guildEmojis  map[string][]types.Emoji
	emojiByID    map[string]*types.Emoji
	fetchErr     error
	cloneID      string
	cloneErr     error
	deleteErr    error
	recent       []types.ChannelMessage
	recentErr    error

	plainSends        []string
	impersonatedSends []impersonatedSend
	clonedNames       []string
	deletedEmojis     []string
}

type impersonatedSend struct {
	channelID   string
	text        string
	displayName string
	avatarURL   string
}

func newMockChatClient() *mockChatClient {
	return &mockChatClient{
		sendPlainResp:        &types.SendResponse{MessageID: "plain-id"},
		sendImpersonatedResp: &types.SendResponse{MessageID: "imp-id"},
		channels:             make(map[string]*types.Channel),
		guilds:               make(map[string]*types.Guild),
		guildEmojis:          make(map[string][]types.Emoji),
		emojiByID:            make(map[string]*types.Emoji),
	}
}

func (m *mockChatClient) SendPlain(ctx context.Context, channelID, text string) (*types.SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendPlainErr != nil {
		return nil, m.sendPlainErr
	}
	m.plainSends = append(m.plainSends, text)
	return m.sendPlainResp, nil
}

func (m *mockChatClient) SendImpersonated(ctx context.Context, channelID, text, displayName, avatarURL string) (*types.SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendImpersonatedErr != nil {
		return nil, m.sendImpersonatedErr
	}
	m.impersonatedSends = append(m.impersonatedSends, impersonatedSend{
		channelID:   channelID,
		text:        text,
		displayName: displayName,
		avatarURL:   avatarURL,
	})
	return m.sendImpersonatedResp, nil
}

func (m *mockChatClient) FetchChannel(ctx context.Context, channelID string) (*types.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	return &types.Channel{ID: channelID}, nil
}

func (m *mockChatClient) FetchGuild(ctx context.Context, guildID string) (*types.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guilds[guildID]; ok {
		return g, nil
	}
	return &types.Guild{ID: guildID, EmojiSlots: 50, CanManageEmojis: true}, nil
}

func (m *mockChatClient) FetchGuildEmojis(ctx context.Context, guildID string) ([]types.Emoji, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.guildEmojis[guildID], nil
}

func (m *mockChatClient) FetchEmoji(ctx context.Context, emojiID string) (*types.Emoji, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.emojiByID[emojiID]; ok {
		return e, nil
	}
	return nil, errNotFound
}

func (m *mockChatClient) CloneEmoji(ctx context.Context, guildID, imageURL, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cloneErr != nil {
		return "", m.cloneErr
	}
	m.clonedNames = append(m.clonedNames, name)
	if m.cloneID != "" {
		return m.cloneID, nil
	}
	return "cloned-id", nil
}

func (m *mockChatClient) DeleteEmoji(ctx context.Context, guildID, emojiID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedEmojis = append(m.deletedEmojis, emojiID)
	return nil
}

func (m *mockChatClient) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}

func (m *mockChatClient) RecentMessages(ctx context.Context, channelID string, limit int) ([]types.ChannelMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.recent, nil
}

func (m *mockChatClient) impersonatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.impersonatedSends)
}

func (m *mockChatClient) impersonatedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, len(m.impersonatedSends))
	for i, s := range m.impersonatedSends {
		texts[i] = s.text
	}
	return texts
}

// Mock context translator. translateFn is invoked per attempt when set.
type mockContextTranslator struct {
	mu          sync.Mutex
	calls       int
	translateFn func(call int, text, source, target string) (string, string, error)
}

func (m *mockContextTranslator) TranslateWithContext(ctx context.Context, text, sourceLang, targetLang string, history []translation.ContextMessage) (string, string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	fn := m.translateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(call, text, sourceLang, targetLang)
	}
	return "translated:" + text, "prompt", nil
}

func (m *mockContextTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock plain translator.
type mockPlainTranslator struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (m *mockPlainTranslator) TranslatePlain(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.text != "" {
		return m.text, nil
	}
	return "plain:" + text, nil
}

func (m *mockPlainTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock audit recorder capturing every attempt.
type mockAuditRecorder struct {
	mu       sync.Mutex
	attempts []audit.Attempt
	err      error
}

func (m *mockAuditRecorder) RecordAttempt(ctx context.Context, a *audit.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *mockAuditRecorder) recorded() []audit.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// Mock avatar handler tracking downloads and removals.
type mockAvatarHandler struct {
	mu          sync.Mutex
	downloadErr error
	path        string
	removed     []string
}

func (m *mockAvatarHandler) Download(ctx context.Context, avatarURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloadErr != nil {
		return "", m.downloadErr
	}
	if m.path != "" {
		return m.path, nil
	}
	return "/tmp/avatars/default.png", nil
}

func (m *mockAvatarHandler) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	return nil
}

func (m *mockAvatarHandler) CleanupOldFiles(maxAge time.Duration) error {
	return nil
}

func (m *mockAvatarHandler) removedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.removed))
	copy(out, m.removed)
	return out
}
