package service

import (
	"context"
	"sync"
	"time"

	"lingobridge/internal/constants"
	"lingobridge/internal/models"
	"lingobridge/pkg/avatar"

	"github.com/sirupsen/logrus"
)

// IdentityProjector resolves an author into the display identity used for
// impersonated deliveries, and reference-counts the downloaded avatar file
// so it outlives every in-flight delivery that needs it.
type IdentityProjector struct {
	avatars avatar.Handler
	grace   time.Duration
	logger  *logrus.Logger

	mu   sync.Mutex
	refs map[string]*avatarRef // localAvatarPath -> pending count
}

type avatarRef struct {
	count   int
	cleanup *time.Timer
}

// NewIdentityProjector creates a projector backed by the given avatar
// cache. grace is the window during which a scheduled deletion can still be
// cancelled by a new reference; zero means the default.
func NewIdentityProjector(avatars avatar.Handler, grace time.Duration, logger *logrus.Logger) *IdentityProjector {
	if grace <= 0 {
		grace = constants.DefaultAvatarReleaseGraceMs * time.Millisecond
	}
	return &IdentityProjector{
		avatars: avatars,
		grace:   grace,
		logger:  logger,
		refs:    make(map[string]*avatarRef),
	}
}

// Project derives the display identity for an author. The avatar download
// is best-effort: on failure the profile still carries the remote URL and
// LocalAvatarPath stays empty.
func (p *IdentityProjector) Project(ctx context.Context, author *models.Author) *models.UserProfile {
	profile := &models.UserProfile{
		Username:    author.Username,
		DisplayName: author.DisplayName,
		AvatarURL:   author.AvatarURL,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = author.Username
	}

	if author.AvatarURL == "" {
		return profile
	}

	localPath, err := p.avatars.Download(ctx, author.AvatarURL)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"authorId": author.ID,
		}).WithError(err).Warn("Avatar download failed, deliveries will use the remote URL")
		return profile
	}

	profile.LocalAvatarPath = localPath
	return profile
}

// AddReference registers n pending consumers of a downloaded avatar file.
// A reference arriving while a deletion is scheduled cancels it.
func (p *IdentityProjector) AddReference(path string, n int) {
	if path == "" || n <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ref, ok := p.refs[path]
	if !ok {
		ref = &avatarRef{}
		p.refs[path] = ref
	}
	if ref.cleanup != nil {
		ref.cleanup.Stop()
		ref.cleanup = nil
	}
	ref.count += n
}

// RemoveReference releases one pending consumer. When the count reaches
// zero the file is deleted after a short grace window, absorbing the race
// where another delivery is about to reference the same path.
func (p *IdentityProjector) RemoveReference(path string) {
	if path == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ref, ok := p.refs[path]
	if !ok {
		return
	}

	ref.count--
	if ref.count > 0 {
		return
	}

	ref.count = 0
	ref.cleanup = time.AfterFunc(p.grace, func() {
		p.deleteIfUnreferenced(path)
	})
}

func (p *IdentityProjector) deleteIfUnreferenced(path string) {
	p.mu.Lock()
	ref, ok := p.refs[path]
	if !ok || ref.count > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.refs, path)
	p.mu.Unlock()

	if err := p.avatars.Remove(path); err != nil {
		p.logger.WithField("path", path).WithError(err).Warn("Failed to delete avatar file")
		return
	}
	p.logger.WithField("path", path).Debug("Deleted unreferenced avatar file")
}

// ForceCleanup bypasses reference counting and deletes immediately. Used on
// shutdown and emergency paths.
func (p *IdentityProjector) ForceCleanup(path string) {
	if path == "" {
		return
	}

	p.mu.Lock()
	if ref, ok := p.refs[path]; ok {
		if ref.cleanup != nil {
			ref.cleanup.Stop()
		}
		delete(p.refs, path)
	}
	p.mu.Unlock()

	if err := p.avatars.Remove(path); err != nil {
		p.logger.WithField("path", path).WithError(err).Warn("Failed to force-delete avatar file")
	}
}

// Shutdown force-deletes every tracked avatar file. Best effort.
func (p *IdentityProjector) Shutdown() {
	p.mu.Lock()
	paths := make([]string, 0, len(p.refs))
	for path, ref := range p.refs {
		if ref.cleanup != nil {
			ref.cleanup.Stop()
		}
		paths = append(paths, path)
	}
	p.refs = make(map[string]*avatarRef)
	p.mu.Unlock()

	for _, path := range paths {
		if err := p.avatars.Remove(path); err != nil {
			p.logger.WithField("path", path).WithError(err).Warn("Failed to delete avatar file during shutdown")
		}
	}
}

// PendingReferences reports the current count for a path. Zero also covers
// unknown paths.
func (p *IdentityProjector) PendingReferences(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ref, ok := p.refs[path]; ok {
		return ref.count
	}
	return 0
}
