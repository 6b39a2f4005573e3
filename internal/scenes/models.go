package scenes

import (
	"encoding/json"
	"strings"
	"time"

	"scenecast/internal/freshness"
)

// Status represents the lifecycle of a scene item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRendering Status = "rendering"
	StatusRendered  Status = "rendered"
	StatusPosting   Status = "posting"
	StatusPosted    Status = "posted"
	StatusReview    Status = "review"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusRendering,
	StatusRendered,
	StatusPosting,
	StatusPosted,
	StatusReview,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusRendering: {},
	StatusPosting:   {},
}

// Item represents a scene persisted in SQLite.
type Item struct {
	ID              int64
	Title           string
	SceneText       string
	AudioPath       string
	BackgroundPath  string
	Status          Status
	RenderedFile    string
	StillFile       string
	PostURI         string
	PostCID         string
	SnapshotJSON    string
	ErrorMessage    string
	ReviewReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Snapshot decodes the persisted render snapshot. A missing snapshot decodes
// to the zero value, which freshness treats as always stale.
func (i Item) Snapshot() (freshness.Snapshot, error) {
	if strings.TrimSpace(i.SnapshotJSON) == "" {
		return freshness.Snapshot{}, nil
	}
	var snap freshness.Snapshot
	if err := json.Unmarshal([]byte(i.SnapshotJSON), &snap); err != nil {
		return freshness.Snapshot{}, err
	}
	return snap, nil
}

// SetSnapshot stores the render snapshot alongside the item.
func (i *Item) SetSnapshot(snap freshness.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	i.SnapshotJSON = string(data)
	return nil
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ProgressStage = "Failed"
	i.LastHeartbeat = nil
}

// SetReview parks the item for manual attention with the given reason.
// Review items are never retried automatically.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.ReviewReason = reason
	i.ErrorMessage = reason
	i.ProgressPercent = 0
	i.ProgressMessage = reason
	i.ProgressStage = "Review"
	i.LastHeartbeat = nil
}

// HealthSummary describes aggregated counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Posted     int
	Review     int
	Failed     int
}
