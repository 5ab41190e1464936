package artifacts

import (
	"reelsmith/internal/fileutil"
)

// Kind names one validatable artifact class.
type Kind string

const (
	KindStory  Kind = "story"
	KindImages Kind = "images"
	KindAudio  Kind = "audio"
	KindVideo  Kind = "video"
)

// Validator performs read-only checks on a story directory. Validity is
// all-or-nothing per kind: one missing or empty file fails the whole kind.
type Validator struct{}

// IsValid reports whether every artifact of the given kind exists non-empty.
// Image count is driven by the prompts file, audio count by the paragraphs
// file; either file missing makes the dependent kind invalid.
func (Validator) IsValid(layout Layout, kind Kind) bool {
	switch kind {
	case KindStory:
		return fileutil.ExistsNonEmpty(layout.ParagraphsFile()) &&
			fileutil.ExistsNonEmpty(layout.PromptsFile())
	case KindImages:
		prompts, err := layout.ReadPrompts()
		if err != nil || len(prompts) == 0 {
			return false
		}
		for i := 1; i <= len(prompts); i++ {
			if !fileutil.ExistsNonEmpty(layout.ImageFile(i)) {
				return false
			}
		}
		return true
	case KindAudio:
		paragraphs, err := layout.ReadParagraphs()
		if err != nil || len(paragraphs) == 0 {
			return false
		}
		for i := 1; i <= len(paragraphs); i++ {
			if !fileutil.ExistsNonEmpty(layout.AudioFile(i)) {
				return false
			}
		}
		return true
	case KindVideo:
		return fileutil.ExistsNonEmpty(layout.VideoFile())
	default:
		return false
	}
}
