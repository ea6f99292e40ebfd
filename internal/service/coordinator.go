package service

import (
	"context"
	"strings"
	"sync"

	"lingobridge/internal/constants"
	"lingobridge/internal/metrics"
	"lingobridge/internal/models"
	"lingobridge/internal/tracing"
	"lingobridge/pkg/chat/types"
	"lingobridge/pkg/translation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SyncCoordinator drives one incoming message end to end: group
// resolution, identity projection, per-target translation fan-out, and
// enqueueing onto the destination delivery queues.
type SyncCoordinator struct {
	resolver    *GroupResolver
	translator  *TranslationOrchestrator
	identity    *IdentityProjector
	queues      *DeliveryQueueSet
	client      types.Client
	botUserID   string
	contextSize int
	logger      *logrus.Logger
}

// NewSyncCoordinator wires the pipeline components together.
func NewSyncCoordinator(resolver *GroupResolver, translator *TranslationOrchestrator, identity *IdentityProjector, queues *DeliveryQueueSet, client types.Client, botUserID string, contextSize int, logger *logrus.Logger) *SyncCoordinator {
	if contextSize <= 0 {
		contextSize = constants.DefaultContextMessages
	}
	return &SyncCoordinator{
		resolver:    resolver,
		translator:  translator,
		identity:    identity,
		queues:      queues,
		client:      client,
		botUserID:   botUserID,
		contextSize: contextSize,
		logger:      logger,
	}
}

// target is one fan-out destination for a message.
type target struct {
	channelID string
	language  string
}

// HandleMessage processes one incoming message. It returns once every
// target's delivery has been enqueued; the queues drain asynchronously.
// Messages from the bot itself, empty messages, and messages outside a
// server context are ignored. Failures along the way degrade the delivery
// (untranslated marker, remote avatar URL) rather than failing the message,
// so there is nothing to report back to the event source.
func (c *SyncCoordinator) HandleMessage(ctx context.Context, msg *models.IncomingMessage) {
	if msg.Author.ID == c.botUserID || msg.Author.Bot {
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		return
	}
	if msg.ServerID == "" {
		return
	}

	sourceLang, ok := c.resolver.SourceLanguage(msg.ServerID, msg.ChannelID)
	if !ok {
		return
	}

	matches := c.resolver.Resolve(msg.ServerID, msg.ChannelID)
	if len(matches) == 0 {
		return
	}

	targets := c.collectTargets(matches, msg.ChannelID, sourceLang)
	if len(targets) == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "sync_message",
		attribute.String("message_id", msg.ID),
		attribute.Int("target_count", len(targets)),
	)
	defer span.End()

	profile := c.identity.Project(ctx, &msg.Author)

	// Pre-count every pending delivery before any translation finishes so
	// the avatar file cannot be reclaimed mid-fan-out.
	c.identity.AddReference(profile.LocalAvatarPath, len(targets))

	sourceChannelName := msg.ChannelID
	if channel, err := c.client.FetchChannel(ctx, msg.ChannelID); err == nil && channel.Name != "" {
		sourceChannelName = channel.Name
	}

	contextMsgs := c.fetchContext(ctx, msg.ChannelID)

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			c.deliverTo(ctx, msg, t, sourceLang, sourceChannelName, profile, contextMsgs)
		}(t)
	}
	wg.Wait()

	metrics.IncrementCounter("messages_synced_total", nil)
}

// collectTargets flattens group members into distinct destination
// channels, dropping the source channel and any member whose language
// matches the source language case-insensitively.
func (c *SyncCoordinator) collectTargets(matches []models.GroupMatch, sourceChannelID, sourceLang string) []target {
	seen := make(map[string]bool)
	var targets []target
	for _, match := range matches {
		for _, member := range match.Members {
			if member.ChannelID == sourceChannelID {
				continue
			}
			if models.SameLanguage(member.Language, sourceLang) {
				continue
			}
			if seen[member.ChannelID] {
				continue
			}
			seen[member.ChannelID] = true
			targets = append(targets, target{channelID: member.ChannelID, language: member.Language})
		}
	}
	return targets
}

func (c *SyncCoordinator) deliverTo(ctx context.Context, msg *models.IncomingMessage, t target, sourceLang, sourceChannelName string, profile *models.UserProfile, contextMsgs []translation.ContextMessage) {
	text, err := c.translateFor(ctx, msg, t, sourceLang, contextMsgs)
	if err != nil {
		// Never drop the message: deliver the original annotated as
		// untranslated.
		c.logger.WithFields(logrus.Fields{
			"messageId":      msg.ID,
			"targetChannel":  t.channelID,
			"targetLanguage": t.language,
		}).WithError(err).Warn("Translation failed, delivering original text")
		text = msg.Content + constants.UntranslatedMarker
	}

	targetGuildID := msg.ServerID
	if channel, cerr := c.client.FetchChannel(ctx, t.channelID); cerr == nil && channel.GuildID != "" {
		targetGuildID = channel.GuildID
	}

	c.queues.Get(t.channelID).Enqueue(&models.QueuedDelivery{
		ID:                uuid.New().String(),
		TargetChannelID:   t.channelID,
		TargetGuildID:     targetGuildID,
		TargetLanguage:    t.language,
		TranslatedText:    text,
		SourceGuildID:     msg.ServerID,
		SourceChannelName: sourceChannelName,
		TimestampOfSource: msg.CreatedAt,
		Profile:           profile,
	})
}

func (c *SyncCoordinator) translateFor(ctx context.Context, msg *models.IncomingMessage, t target, sourceLang string, contextMsgs []translation.ContextMessage) (string, error) {
	result, err := c.translator.Translate(ctx, &TranslationRequest{
		MessageID:  msg.ID,
		Text:       msg.Content,
		SourceLang: sourceLang,
		TargetLang: t.language,
		Context:    contextMsgs,
	})
	if err != nil {
		return "", err
	}

	text := result.Text
	if !result.ContextUsed {
		text += constants.FallbackMarker
	}
	return text, nil
}

// fetchContext pulls recent channel history for the context-aware
// translator. History is optional; failures just mean less context.
func (c *SyncCoordinator) fetchContext(ctx context.Context, channelID string) []translation.ContextMessage {
	history, err := c.client.RecentMessages(ctx, channelID, c.contextSize)
	if err != nil {
		c.logger.WithField("channelId", channelID).WithError(err).Debug("Failed to fetch channel history for translation context")
		return nil
	}

	msgs := make([]translation.ContextMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, translation.ContextMessage{AuthorName: m.AuthorName, Content: m.Content})
	}
	return msgs
}
