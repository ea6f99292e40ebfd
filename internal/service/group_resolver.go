package service

import (
	"sort"
	"sync"

	"lingobridge/internal/models"
)

// GroupResolver answers which sync groups a source channel belongs to,
// against a loaded configuration snapshot. Snapshots are read-mostly; Reload
// swaps the whole mapping between messages.
type GroupResolver struct {
	mu       sync.RWMutex
	snapshot models.GroupSnapshot
}

// NewGroupResolver creates a resolver over an initial snapshot.
func NewGroupResolver(snapshot models.GroupSnapshot) *GroupResolver {
	if snapshot == nil {
		snapshot = models.GroupSnapshot{}
	}
	return &GroupResolver{snapshot: snapshot}
}

// Reload replaces the configuration snapshot.
func (r *GroupResolver) Reload(snapshot models.GroupSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot == nil {
		snapshot = models.GroupSnapshot{}
	}
	r.snapshot = snapshot
}

// Resolve returns every sync group on serverID that contains channelID.
// An unconfigured channel yields an empty result; callers treat that as
// "ignore the message", not as an error.
func (r *GroupResolver) Resolve(serverID, channelID string) []models.GroupMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups, ok := r.snapshot[serverID]
	if !ok {
		return nil
	}

	var matches []models.GroupMatch
	for _, groupID := range sortedGroupIDs(groups) {
		members := groups[groupID]
		for _, member := range members {
			if member.ChannelID == channelID {
				matches = append(matches, models.GroupMatch{GroupID: groupID, Members: members})
				break
			}
		}
	}
	return matches
}

// SourceLanguage returns the configured language of a channel on a server.
// When the backing store places a channel in several groups, the first
// match in group ID order wins; iteration is sorted so the tiebreak is
// stable across calls.
func (r *GroupResolver) SourceLanguage(serverID, channelID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups, ok := r.snapshot[serverID]
	if !ok {
		return "", false
	}

	for _, groupID := range sortedGroupIDs(groups) {
		for _, member := range groups[groupID] {
			if member.ChannelID == channelID {
				return member.Language, true
			}
		}
	}
	return "", false
}

func sortedGroupIDs(groups map[string][]models.ChannelConfig) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
