package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lingobridge/internal/models"
	"lingobridge/internal/security"
)

// LoadGroups reads the persisted sync-group mapping (serverID -> groupID ->
// members). A missing file yields an empty snapshot, not an error, so a
// fresh deployment starts with no linked channels.
func LoadGroups(path string) (models.GroupSnapshot, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid groups path: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		if os.IsNotExist(err) {
			return models.GroupSnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read groups file: %w", err)
	}

	var snapshot models.GroupSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse groups file: %w", err)
	}

	if err := validateGroups(snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// SaveGroups persists a mutated snapshot. Only administrative flows call
// this; the sync pipeline is read-only against snapshots.
func SaveGroups(path string, snapshot models.GroupSnapshot) error {
	if err := validateGroups(snapshot); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}

	// Write-then-rename so readers never observe a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(filepath.Clean(tmp))
		return fmt.Errorf("failed to replace groups file: %w", err)
	}
	return nil
}

func validateGroups(snapshot models.GroupSnapshot) error {
	for serverID, groups := range snapshot {
		if serverID == "" {
			return models.ConfigError{Message: "empty server ID in groups file"}
		}
		for groupID, members := range groups {
			if groupID == "" {
				return models.ConfigError{Message: fmt.Sprintf("empty group ID under server %s", serverID)}
			}
			seen := make(map[string]bool, len(members))
			for _, member := range members {
				if member.ChannelID == "" {
					return models.ConfigError{Message: fmt.Sprintf("empty channel ID in group %s", groupID)}
				}
				if !models.IsSupportedLanguage(member.Language) {
					return models.ConfigError{Message: fmt.Sprintf("unsupported language %q for channel %s", member.Language, member.ChannelID)}
				}
				if seen[member.ChannelID] {
					return models.ConfigError{Message: fmt.Sprintf("duplicate channel %s in group %s", member.ChannelID, groupID)}
				}
				seen[member.ChannelID] = true
			}
		}
	}
	return nil
}
