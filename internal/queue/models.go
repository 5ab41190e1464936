package queue

import (
	"strings"
	"time"
)

// Status mirrors the free-form status cells of the original work sheet.
// Comparisons are case-insensitive; "realizada" and "realizado" are both
// accepted as done so existing sheets keep working.
type Status string

const (
	StatusPending       Status = "pendiente"
	StatusDone          Status = "realizada"
	StatusDoneVideo     Status = "realizado"
	StatusNotApplicable Status = "n/a"
)

var allStatuses = []Status{
	StatusPending,
	StatusDone,
	StatusDoneVideo,
	StatusNotApplicable,
}

// ParseStatus converts a string into a known Status, case-insensitively.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	for _, status := range allStatuses {
		if normalized == status {
			return status, true
		}
	}
	return normalized, false
}

// IsPending reports whether the status cell marks work still to do.
func (s Status) IsPending() bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(StatusPending))
}

// IsDone reports whether the status cell marks completed work. Both gender
// variants of the done marker are accepted.
func (s Status) IsDone() bool {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	return v == string(StatusDone) || v == string(StatusDoneVideo)
}

// IsNotApplicable reports whether the stage is skipped for this item.
func (s Status) IsNotApplicable() bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(StatusNotApplicable))
}

// Stage identifies one of the strictly ordered pipeline stages.
type Stage string

const (
	StageStory  Stage = "story"
	StageImages Stage = "images"
	StageVideo  Stage = "video"
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageStory, StageImages, StageVideo}
}

// DoneStatus returns the status value a completed stage is recorded with.
// The sheet convention uses "realizado" for the video column and "realizada"
// for the others.
func (s Stage) DoneStatus() Status {
	if s == StageVideo {
		return StatusDoneVideo
	}
	return StatusDone
}

// Item represents one story production unit persisted in SQLite.
type Item struct {
	ID           int64
	Title        string
	Slug         string
	StoryStatus  Status
	ImagesStatus Status
	VideoStatus  Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StageStatus returns the status cell for the given stage.
func (i *Item) StageStatus(stage Stage) Status {
	switch stage {
	case StageStory:
		return i.StoryStatus
	case StageImages:
		return i.ImagesStatus
	case StageVideo:
		return i.VideoStatus
	default:
		return ""
	}
}

// SetStageStatus updates the status cell for the given stage.
func (i *Item) SetStageStatus(stage Stage, status Status) {
	switch stage {
	case StageStory:
		i.StoryStatus = status
	case StageImages:
		i.ImagesStatus = status
	case StageVideo:
		i.VideoStatus = status
	}
}

// Completed reports whether every applicable stage is done.
func (i *Item) Completed() bool {
	for _, stage := range Stages() {
		status := i.StageStatus(stage)
		if status.IsNotApplicable() {
			continue
		}
		if !status.IsDone() {
			return false
		}
	}
	return true
}

// HealthSummary describes aggregated queue counts.
type HealthSummary struct {
	Total     int
	Pending   int
	Completed int
	Errored   int
}
