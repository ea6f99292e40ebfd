package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"lingobridge/internal/constants"
	"lingobridge/internal/metrics"
	"lingobridge/internal/models"
	"lingobridge/pkg/chat/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// emojiTokenPattern matches platform custom-emoji tokens: an optional
// animated flag, a name, and a numeric id.
var emojiTokenPattern = regexp.MustCompile(`<(a?):([A-Za-z0-9_~]+):([0-9]+)>`)

// EmojiBridge rewrites custom-emoji tokens in translated text so they
// render in the destination guild: reuse an existing emoji when possible,
// otherwise clone it temporarily and schedule its deletion.
type EmojiBridge struct {
	client       types.Client
	cleanupDelay time.Duration
	logger       *logrus.Logger

	mu     sync.Mutex
	clones map[cloneKey]models.EmojiCloneRecord
}

type cloneKey struct {
	guildID string
	emojiID string
}

// NewEmojiBridge creates a bridge over the given platform client.
func NewEmojiBridge(client types.Client, cleanupDelay time.Duration, logger *logrus.Logger) *EmojiBridge {
	if cleanupDelay <= 0 {
		cleanupDelay = constants.DefaultEmojiCleanupDelaySec * time.Second
	}
	return &EmojiBridge{
		client:       client,
		cleanupDelay: cleanupDelay,
		logger:       logger,
		clones:       make(map[cloneKey]models.EmojiCloneRecord),
	}
}

// ContainsEmojiTokens reports whether text carries any custom-emoji token.
func ContainsEmojiTokens(text string) bool {
	return emojiTokenPattern.MatchString(text)
}

// Bridge rewrites every custom-emoji token in text for the target guild and
// returns the clone records it created. Failures on individual tokens
// degrade that token to a plain :name: placeholder; Bridge itself never
// fails the message send.
func (b *EmojiBridge) Bridge(ctx context.Context, text, sourceGuildID, targetGuildID string) (string, []models.EmojiCloneRecord) {
	matches := emojiTokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	targetEmojis, err := b.client.FetchGuildEmojis(ctx, targetGuildID)
	if err != nil {
		b.logger.WithField("guildId", targetGuildID).WithError(err).Warn("Failed to fetch target guild emojis, degrading all tokens")
		targetEmojis = nil
	}

	var sourceEmojis []types.Emoji
	sourceFetched := false

	var records []models.EmojiCloneRecord
	rewritten := text

	// One clone per distinct source emoji per message: a token repeated in
	// the text reuses the clone made for its first occurrence.
	clonedByID := make(map[string]*models.EmojiCloneRecord)

	for _, match := range matches {
		token, animatedFlag, name, id := match[0], match[1], match[2], match[3]
		placeholder := fmt.Sprintf(":%s:", name)

		if prior, ok := clonedByID[id]; ok {
			cloneToken := fmt.Sprintf("<%s:%s:%s>", animatedFlag, prior.OriginalName, prior.ClonedID)
			rewritten = strings.Replace(rewritten, token, cloneToken, 1)
			continue
		}

		// Reuse an emoji the target guild already has, matching by id
		// first and then by name. Name matching takes the first hit, which
		// can pick an unrelated emoji with a colliding name; that is the
		// established behavior.
		if existing := findEmoji(targetEmojis, id, name); existing != nil {
			rewritten = strings.Replace(rewritten, token, formatEmojiToken(existing), 1)
			continue
		}

		if err != nil {
			// Target emoji list is unknown; cloning blindly could exceed
			// capacity, so degrade.
			rewritten = strings.Replace(rewritten, token, placeholder, 1)
			continue
		}

		if !sourceFetched {
			sourceFetched = true
			sourceEmojis, err = b.client.FetchGuildEmojis(ctx, sourceGuildID)
			if err != nil {
				b.logger.WithField("guildId", sourceGuildID).WithError(err).Warn("Failed to fetch source guild emojis")
				sourceEmojis = nil
				err = nil
			}
		}

		source := findEmoji(sourceEmojis, id, "")
		if source == nil {
			// Externally-sourced emoji: the source guild cache does not
			// have it, try a direct fetch.
			fetched, ferr := b.client.FetchEmoji(ctx, id)
			if ferr != nil {
				b.logger.WithFields(logrus.Fields{
					"emojiId":   id,
					"emojiName": name,
				}).Debug("Source emoji could not be located, degrading token")
				rewritten = strings.Replace(rewritten, token, placeholder, 1)
				continue
			}
			source = fetched
		}

		record, cerr := b.clone(ctx, source, targetGuildID, animatedFlag == "a")
		if cerr != nil {
			b.logger.WithFields(logrus.Fields{
				"emojiId":       id,
				"emojiName":     name,
				"targetGuildId": targetGuildID,
			}).WithError(cerr).Warn("Emoji clone failed, degrading token")
			metrics.IncrementCounter("emoji_clones_total", map[string]string{"outcome": "degraded"})
			rewritten = strings.Replace(rewritten, token, placeholder, 1)
			continue
		}

		metrics.IncrementCounter("emoji_clones_total", map[string]string{"outcome": "cloned"})
		records = append(records, *record)
		clonedByID[id] = record
		cloneToken := fmt.Sprintf("<%s:%s:%s>", animatedFlag, record.OriginalName, record.ClonedID)
		rewritten = strings.Replace(rewritten, token, cloneToken, 1)
	}

	return rewritten, records
}

func (b *EmojiBridge) clone(ctx context.Context, source *types.Emoji, targetGuildID string, animated bool) (*models.EmojiCloneRecord, error) {
	guild, err := b.client.FetchGuild(ctx, targetGuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch target guild: %w", err)
	}
	if !guild.CanManageEmojis {
		return nil, fmt.Errorf("missing manage-emoji permission in guild %s", targetGuildID)
	}

	emojis, err := b.client.FetchGuildEmojis(ctx, targetGuildID)
	if err == nil && guild.EmojiSlots > 0 && len(emojis) >= guild.EmojiSlots {
		return nil, fmt.Errorf("guild %s emoji slots are full (%d)", targetGuildID, guild.EmojiSlots)
	}

	tempName := temporaryEmojiName(source.Name)
	clonedID, err := b.client.CloneEmoji(ctx, targetGuildID, source.ImageURL, tempName)
	if err != nil {
		return nil, fmt.Errorf("clone call failed: %w", err)
	}

	record := models.EmojiCloneRecord{
		OriginalID:   source.ID,
		OriginalName: source.Name,
		ClonedID:     clonedID,
		GuildID:      targetGuildID,
		Animated:     animated || source.Animated,
		ClonedAt:     time.Now(),
	}

	b.mu.Lock()
	b.clones[cloneKey{guildID: targetGuildID, emojiID: clonedID}] = record
	b.mu.Unlock()

	return &record, nil
}

// ScheduleCleanup deletes each cloned emoji after the configured delay. The
// delay leaves time for the message referencing the clone to render; the
// deletion is fire-and-forget and cannot be cancelled.
func (b *EmojiBridge) ScheduleCleanup(records []models.EmojiCloneRecord) {
	for _, record := range records {
		record := record
		time.AfterFunc(b.cleanupDelay, func() {
			b.deleteClone(context.Background(), record)
		})
	}
}

func (b *EmojiBridge) deleteClone(ctx context.Context, record models.EmojiCloneRecord) {
	if err := b.client.DeleteEmoji(ctx, record.GuildID, record.ClonedID); err != nil {
		b.logger.WithFields(logrus.Fields{
			"guildId": record.GuildID,
			"emojiId": record.ClonedID,
		}).WithError(err).Warn("Failed to delete cloned emoji")
	}

	b.mu.Lock()
	delete(b.clones, cloneKey{guildID: record.GuildID, emojiID: record.ClonedID})
	b.mu.Unlock()
}

// IsTemporary reports whether an emoji in a guild is a tracked clone whose
// cleanup has not fired yet.
func (b *EmojiBridge) IsTemporary(guildID, emojiID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clones[cloneKey{guildID: guildID, emojiID: emojiID}]
	return ok
}

// CleanupAll force-deletes every tracked clone immediately.
func (b *EmojiBridge) CleanupAll(ctx context.Context) {
	b.EmergencyCleanup(ctx, "")
}

// EmergencyCleanup force-deletes tracked clones immediately, optionally
// scoped to one guild. Used on process shutdown.
func (b *EmojiBridge) EmergencyCleanup(ctx context.Context, guildID string) {
	b.mu.Lock()
	var pending []models.EmojiCloneRecord
	for key, record := range b.clones {
		if guildID != "" && key.guildID != guildID {
			continue
		}
		pending = append(pending, record)
		delete(b.clones, key)
	}
	b.mu.Unlock()

	for _, record := range pending {
		if err := b.client.DeleteEmoji(ctx, record.GuildID, record.ClonedID); err != nil {
			b.logger.WithFields(logrus.Fields{
				"guildId": record.GuildID,
				"emojiId": record.ClonedID,
			}).WithError(err).Warn("Failed to delete cloned emoji during emergency cleanup")
		}
	}

	if len(pending) > 0 {
		b.logger.WithField("count", len(pending)).Info("Emergency emoji cleanup completed")
	}
}

func findEmoji(emojis []types.Emoji, id, name string) *types.Emoji {
	for i := range emojis {
		if emojis[i].ID == id {
			return &emojis[i]
		}
	}
	if name == "" {
		return nil
	}
	for i := range emojis {
		if emojis[i].Name == name {
			return &emojis[i]
		}
	}
	return nil
}

func formatEmojiToken(e *types.Emoji) string {
	if e.Animated {
		return fmt.Sprintf("<a:%s:%s>", e.Name, e.ID)
	}
	return fmt.Sprintf("<:%s:%s>", e.Name, e.ID)
}

// temporaryEmojiName generates a collision-resistant name for a clone. The
// platform limits emoji names to 32 characters.
func temporaryEmojiName(original string) string {
	suffix := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	base := original
	if len(base) > 32-len(suffix)-1 {
		base = base[:32-len(suffix)-1]
	}
	return fmt.Sprintf("%s_%s", base, suffix)
}
