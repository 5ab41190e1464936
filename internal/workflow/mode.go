package workflow

import (
	"fmt"
	"strings"

	"reelsmith/internal/queue"
)

// Mode selects which portion of the pipeline a reconciliation run drives.
type Mode string

const (
	// ModeFull runs story, images, and video for items with a pending story.
	ModeFull Mode = "full"
	// ModeImages runs images and video for items with pending images.
	ModeImages Mode = "images"
	// ModeVideo runs only video assembly for items with a pending video.
	ModeVideo Mode = "video"
	// ModeStory runs only story generation.
	ModeStory Mode = "story"
)

// ParseMode validates a mode flag value.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeFull:
		return ModeFull, nil
	case ModeImages:
		return ModeImages, nil
	case ModeVideo:
		return ModeVideo, nil
	case ModeStory:
		return ModeStory, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want full, images, video, or story)", value)
	}
}

// FilterStage returns the status column pending items are selected by.
func (m Mode) FilterStage() queue.Stage {
	switch m {
	case ModeImages:
		return queue.StageImages
	case ModeVideo:
		return queue.StageVideo
	default:
		return queue.StageStory
	}
}

// Stages returns the pipeline stages the mode runs, in order.
func (m Mode) Stages() []queue.Stage {
	switch m {
	case ModeImages:
		return []queue.Stage{queue.StageImages, queue.StageVideo}
	case ModeVideo:
		return []queue.Stage{queue.StageVideo}
	case ModeStory:
		return []queue.Stage{queue.StageStory}
	default:
		return queue.Stages()
	}
}
