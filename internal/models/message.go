package models

import (
	"time"
)

// Author identifies the poster of an incoming message.
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Bot         bool   `json:"bot,omitempty"`
}

// IncomingMessage is a message event delivered by the chat platform. The
// pipeline only reads it.
type IncomingMessage struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	ChannelID string    `json:"channelId"`
	ServerID  string    `json:"serverId"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserProfile is the display identity derived once per incoming message and
// shared read-only across all fan-out deliveries. LocalAvatarPath is empty
// when the avatar download failed; consumers fall back to AvatarURL.
type UserProfile struct {
	Username        string
	DisplayName     string
	AvatarURL       string
	LocalAvatarPath string
}

// QueuedDelivery is one translated message waiting in a destination
// channel's delivery queue. It is owned exclusively by that queue from
// enqueue until send completion.
type QueuedDelivery struct {
	ID                string
	TargetChannelID   string
	TargetGuildID     string
	TargetLanguage    string
	TranslatedText    string
	SourceGuildID     string
	SourceChannelName string
	TimestampOfSource time.Time
	Profile           *UserProfile
}
