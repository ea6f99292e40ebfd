package types

import (
	"context"
)

// Client is the abstract chat-platform surface the sync pipeline depends
// on. Implementations wrap a concrete platform API; the pipeline never sees
// SDK types.
type Client interface {
	SendPlain(ctx context.Context, channelID, text string) (*SendResponse, error)
	SendImpersonated(ctx context.Context, channelID, text, displayName, avatarURL string) (*SendResponse, error)

	FetchChannel(ctx context.Context, channelID string) (*Channel, error)
	FetchGuild(ctx context.Context, guildID string) (*Guild, error)
	FetchGuildEmojis(ctx context.Context, guildID string) ([]Emoji, error)
	FetchEmoji(ctx context.Context, emojiID string) (*Emoji, error)
	CloneEmoji(ctx context.Context, guildID, imageURL, name string) (string, error)
	DeleteEmoji(ctx context.Context, guildID, emojiID string) error

	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
	RecentMessages(ctx context.Context, channelID string, limit int) ([]ChannelMessage, error)
}
