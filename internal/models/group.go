package models

// ChannelConfig is one member of a sync group: a channel and the language
// messages in it are written in.
type ChannelConfig struct {
	ChannelID string `json:"channelId"`
	Language  string `json:"language"`
}

// SyncGroup is a named set of channels configured to mirror translated
// messages among each other. Members may live on different servers.
type SyncGroup struct {
	ServerID string          `json:"serverId"`
	GroupID  string          `json:"groupId"`
	Members  []ChannelConfig `json:"members"`
}

// GroupSnapshot is the loaded configuration mapping: serverID -> groupID ->
// group members. The pipeline treats a snapshot as read-only; administrative
// commands produce a new snapshot and save it.
type GroupSnapshot map[string]map[string][]ChannelConfig

// GroupMatch is one sync group a source channel belongs to.
type GroupMatch struct {
	GroupID string
	Members []ChannelConfig
}
