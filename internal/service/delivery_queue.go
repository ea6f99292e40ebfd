package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lingobridge/internal/metrics"
	"lingobridge/internal/models"
	"lingobridge/internal/tracing"
	"lingobridge/pkg/chat/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DeliveryQueue serializes sends to one destination channel, ordered by the
// source message's creation time rather than arrival time. Translations for
// an earlier message may finish after a later one; sorting on the source
// timestamp preserves conversational order anyway.
type DeliveryQueue struct {
	channelID string
	client    types.Client
	emoji     *EmojiBridge
	identity  *IdentityProjector
	logger    *logrus.Logger

	mu       sync.Mutex
	backlog  []*models.QueuedDelivery
	draining bool
}

// NewDeliveryQueue creates the queue for one destination channel.
func NewDeliveryQueue(channelID string, client types.Client, emoji *EmojiBridge, identity *IdentityProjector, logger *logrus.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		channelID: channelID,
		client:    client,
		emoji:     emoji,
		identity:  identity,
		logger:    logger,
	}
}

// Enqueue inserts a delivery in timestamp order and starts draining if the
// queue is idle. Once enqueued, a delivery will eventually be attempted;
// there is no mid-flight cancellation.
func (q *DeliveryQueue) Enqueue(d *models.QueuedDelivery) {
	q.mu.Lock()
	idx := sort.Search(len(q.backlog), func(i int) bool {
		return q.backlog[i].TimestampOfSource.After(d.TimestampOfSource)
	})
	q.backlog = append(q.backlog, nil)
	copy(q.backlog[idx+1:], q.backlog[idx:])
	q.backlog[idx] = d

	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	metrics.IncrementCounter("deliveries_enqueued_total", map[string]string{"channel": q.channelID})

	if start {
		go q.drain()
	}
}

// drain pops and sends items strictly in sorted order, one at a time. A
// single item's failure never halts the rest of the backlog.
func (q *DeliveryQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.backlog) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.mu.Unlock()

		if err := q.send(context.Background(), item); err != nil {
			q.logger.WithFields(logrus.Fields{
				"deliveryId":      item.ID,
				"targetChannelId": item.TargetChannelID,
			}).WithError(err).Error("Delivery failed")
			metrics.IncrementCounter("deliveries_total", map[string]string{"outcome": "failed"})
		} else {
			metrics.IncrementCounter("deliveries_total", map[string]string{"outcome": "ok"})
		}
	}
}

func (q *DeliveryQueue) send(ctx context.Context, d *models.QueuedDelivery) (err error) {
	ctx, span := tracing.StartSpan(ctx, "deliver",
		attribute.String("channel_id", d.TargetChannelID),
		attribute.String("target_language", d.TargetLanguage),
	)
	defer span.End()

	var records []models.EmojiCloneRecord

	// Resource release must run on every exit path, including panics
	// inside the send itself.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during delivery: %v", r)
			tracing.RecordError(ctx, err)
		}
		q.emoji.ScheduleCleanup(records)
		if d.Profile != nil {
			q.identity.RemoveReference(d.Profile.LocalAvatarPath)
		}
	}()

	text := d.TranslatedText
	if ContainsEmojiTokens(text) {
		text, records = q.emoji.Bridge(ctx, text, d.SourceGuildID, d.TargetGuildID)
	}

	displayName := "unknown"
	avatarURL := ""
	if d.Profile != nil {
		displayName = d.Profile.DisplayName
		avatarURL = d.Profile.AvatarURL
	}

	_, sendErr := q.client.SendImpersonated(ctx, d.TargetChannelID, text, displayName, avatarURL)
	if sendErr == nil {
		return nil
	}

	q.logger.WithFields(logrus.Fields{
		"deliveryId":      d.ID,
		"targetChannelId": d.TargetChannelID,
	}).WithError(sendErr).Warn("Impersonated send failed, falling back to plain send")

	plain := fmt.Sprintf("%s (#%s): %s", displayName, d.SourceChannelName, text)
	if _, perr := q.client.SendPlain(ctx, d.TargetChannelID, plain); perr != nil {
		tracing.RecordError(ctx, perr)
		return fmt.Errorf("plain fallback send failed: %w", perr)
	}

	return nil
}

// Backlog reports the number of queued deliveries.
func (q *DeliveryQueue) Backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// DeliveryQueueSet lazily creates one queue per destination channel.
// Queues for different channels drain concurrently.
type DeliveryQueueSet struct {
	client   types.Client
	emoji    *EmojiBridge
	identity *IdentityProjector
	logger   *logrus.Logger

	mu     sync.Mutex
	queues map[string]*DeliveryQueue
}

// NewDeliveryQueueSet creates an empty queue set.
func NewDeliveryQueueSet(client types.Client, emoji *EmojiBridge, identity *IdentityProjector, logger *logrus.Logger) *DeliveryQueueSet {
	return &DeliveryQueueSet{
		client:   client,
		emoji:    emoji,
		identity: identity,
		logger:   logger,
		queues:   make(map[string]*DeliveryQueue),
	}
}

// Get returns the queue for a destination channel, creating it on first
// use.
func (s *DeliveryQueueSet) Get(channelID string) *DeliveryQueue {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[channelID]
	if !ok {
		queue = NewDeliveryQueue(channelID, s.client, s.emoji, s.identity, s.logger)
		s.queues[channelID] = queue
	}
	return queue
}
