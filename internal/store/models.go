package store

import "time"

// LinkStatus records how an asset's current uri was attributed.
type LinkStatus string

const (
	// LinkNew marks an asset created without matching any existing identity.
	LinkNew LinkStatus = "NEW"
	// LinkExact marks an asset re-observed at the same uri.
	LinkExact LinkStatus = "EXACT"
	// LinkProbable marks an asset re-pointed to a new uri by similarity scoring.
	LinkProbable LinkStatus = "PROBABLE"
)

// Link log actions.
const (
	ActionLinkedProbable = "LINKED_PROBABLE"
	ActionDuplicateExact = "DUPLICATE_EXACT"
)

// SyncStatus is the lifecycle state of an outbox row.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSent    SyncStatus = "SENT"
	SyncFailed  SyncStatus = "FAILED"
)

// Outbox entity types and operations.
const (
	EntityMediaAsset = "media_asset"
	EntityAiEvent    = "ai_event"

	OpCreate = "CREATE"
	OpRelink = "RELINK"
)

// MediaAsset is the durable identity of one physical video file.
// Empty fingerprint strings are stored as NULL.
type MediaAsset struct {
	MediaUID          string     `json:"media_uid"`
	CurrentURI        string     `json:"current_uri"`
	DisplayName       string     `json:"display_name"`
	CategorySubtype   string     `json:"category_subtype"`
	SizeBytes         int64      `json:"size_bytes"`
	DurationMs        int64      `json:"duration_ms"`
	CodecInfo         string     `json:"codec_info,omitempty"`
	ExactFingerprint  string     `json:"exact_fingerprint,omitempty"`
	VisualFingerprint string     `json:"visual_fingerprint,omitempty"`
	FirstSeenAt       time.Time  `json:"first_seen_at"`
	LastSeenAt        time.Time  `json:"last_seen_at"`
	LinkStatus        LinkStatus `json:"link_status"`
	MediaMissing      bool       `json:"media_missing"`
}

// AiEvent is one closed motion segment. Rows are immutable once written.
type AiEvent struct {
	EventUID          string  `json:"event_uid"`
	MediaUID          string  `json:"media_uid"`
	EventType         string  `json:"event_type"`
	ClassName         string  `json:"class_name,omitempty"`
	StartMs           int64   `json:"start_ms"`
	EndMs             int64   `json:"end_ms"`
	Confidence        float64 `json:"confidence"`
	BBoxNorm          string  `json:"bbox_norm"`
	TrackID           *int64  `json:"track_id,omitempty"`
	Priority          int     `json:"priority"`
	ThumbnailRef      string  `json:"thumbnail_ref"`
	DetectedAtEpochMs int64   `json:"detected_at_epoch_ms"`
}

// AiEventSnapshot is a frame captured while an event was in progress.
type AiEventSnapshot struct {
	SnapshotUID     string  `json:"snapshot_uid"`
	EventUID        string  `json:"event_uid"`
	MediaUID        string  `json:"media_uid"`
	CapturedEpochMs int64   `json:"captured_epoch_ms"`
	TimelineMs      int64   `json:"timeline_ms"`
	EventType       string  `json:"event_type"`
	ClassName       string  `json:"class_name,omitempty"`
	Confidence      float64 `json:"confidence"`
	BBoxNorm        string  `json:"bbox_norm,omitempty"`
	ImageURI        string  `json:"image_uri,omitempty"`
	SHA256          string  `json:"sha256,omitempty"`
}

// IntegrityLinkLog is one audit row for a non-exact identity decision.
type IntegrityLinkLog struct {
	LogUID    string    `json:"log_uid"`
	MediaUID  string    `json:"media_uid"`
	Action    string    `json:"action"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncOp is an outbox row awaiting an external consumer.
type SyncOp struct {
	OpUID       string     `json:"op_uid"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Operation   string     `json:"operation"`
	PayloadJSON string     `json:"payload_json,omitempty"`
	Status      SyncStatus `json:"status"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
}
