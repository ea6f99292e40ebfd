package models

import "time"

// EmojiCloneRecord tracks a custom emoji temporarily cloned into a
// destination guild so a translated message can render it. The record lives
// from clone creation until scheduled cleanup deletes the clone.
type EmojiCloneRecord struct {
	OriginalID   string
	OriginalName string
	ClonedID     string
	GuildID      string
	Animated     bool
	ClonedAt     time.Time
}
