package backup

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the content of export.json. Field names follow the archive
// format shared with the other clients.
type Metadata struct {
	ClientID     string    `json:"client_id"`
	CreationTime time.Time `json:"creation_time"`
	Platform     string    `json:"platform"`
	UserID       string    `json:"user_id"`
	Version      string    `json:"version"`
}

// ParseMetadata decodes export.json text. The document must be a JSON object.
// Fields are read leniently: unknown fields are ignored, missing or mistyped
// ones stay zero, so archives from other clients still restore.
func ParseMetadata(text string) (Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Metadata{}, fmt.Errorf("metadata is not a JSON object: %w", err)
	}
	if raw == nil {
		return Metadata{}, fmt.Errorf("metadata is not a JSON object")
	}

	var meta Metadata
	meta.ClientID = stringField(raw, "client_id")
	meta.Platform = stringField(raw, "platform")
	meta.UserID = stringField(raw, "user_id")
	meta.Version = stringField(raw, "version")
	if ts := stringField(raw, "creation_time"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			meta.CreationTime = t
		}
	}
	return meta, nil
}

func stringField(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
