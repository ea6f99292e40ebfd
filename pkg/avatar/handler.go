package avatar

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Handler downloads avatar images into a local content-addressed cache.
type Handler interface {
	Download(ctx context.Context, avatarURL string) (string, error)
	Remove(path string) error
	CleanupOldFiles(maxAge time.Duration) error
}

type handler struct {
	cacheDir   string
	maxSizeMB  int
	httpClient *http.Client
}

// NewHandler creates an avatar cache rooted at cacheDir.
func NewHandler(cacheDir string, maxSizeMB int) (Handler, error) {
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create avatar cache directory: %w", err)
	}

	return &handler{
		cacheDir:   cacheDir,
		maxSizeMB:  maxSizeMB,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Download fetches avatarURL into the cache and returns the local path. The
// file name is the sha256 of the content, so repeated downloads of the same
// avatar share one file.
func (h *handler) Download(ctx context.Context, avatarURL string) (string, error) {
	u, err := url.Parse(avatarURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid avatar URL: %s", avatarURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar download failed with status: %d", resp.StatusCode)
	}

	ext := h.fileExtension(resp, avatarURL)
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("avatar type %s is not allowed", ext)
	}

	tempFile, err := os.CreateTemp(h.cacheDir, "avatar_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	maxBytes := int64(h.maxSizeMB) * 1024 * 1024
	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(tempFile, hash), io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}
	if written > maxBytes {
		return "", fmt.Errorf("avatar too large: > %d MB", h.maxSizeMB)
	}

	cachedPath := filepath.Join(h.cacheDir, fmt.Sprintf("%x%s", hash.Sum(nil), ext))
	if _, err := os.Stat(cachedPath); err == nil {
		return cachedPath, nil
	}

	if err := os.Rename(tempFile.Name(), cachedPath); err != nil {
		if err := copyFile(tempFile.Name(), cachedPath); err != nil {
			return "", fmt.Errorf("failed to move avatar into cache: %w", err)
		}
	}

	return cachedPath, nil
}

// Remove deletes one cached avatar file. A missing file is not an error.
func (h *handler) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove avatar file: %w", err)
	}
	return nil
}

// CleanupOldFiles removes cached avatars older than maxAge. Used as a
// safety net for files orphaned by a crash before their release fired.
func (h *handler) CleanupOldFiles(maxAge time.Duration) error {
	entries, err := os.ReadDir(h.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read avatar cache directory: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(h.cacheDir, info.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove old avatar: %w", err)
			}
		}
	}
	return nil
}

func (h *handler) fileExtension(resp *http.Response, avatarURL string) string {
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil {
			for _, ext := range exts {
				if allowedExtensions[ext] {
					return ext
				}
			}
		}
	}

	if u, err := url.Parse(avatarURL); err == nil {
		if ext := strings.ToLower(filepath.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	return ".png"
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
