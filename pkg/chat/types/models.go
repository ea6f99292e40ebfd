package types

import (
	"encoding/json"
	"time"
)

// Channel describes a chat channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guildId"`
}

// Guild describes a server, including what emoji operations the bot may
// perform there.
type Guild struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	EmojiSlots      int    `json:"emojiSlots"`
	CanManageEmojis bool   `json:"canManageEmojis"`
}

// Emoji is a custom emoji owned by a guild.
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	GuildID  string `json:"guildId"`
	Animated bool   `json:"animated"`
	ImageURL string `json:"imageUrl"`
}

// ChannelMessage is a message returned by the recent-history endpoint, used
// as conversational context for translation.
type ChannelMessage struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SendResponse is the platform's acknowledgment of a send call.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Webhook is a per-channel identity handle used for impersonated posts.
type Webhook struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	ChannelID string `json:"channelId"`
}

// GatewayEvent is the envelope for events delivered over the gateway
// websocket or the push webhook.
type GatewayEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
