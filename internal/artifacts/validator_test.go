package artifacts_test

import (
	"strings"
	"testing"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/testsupport"
)

func storyLayout(t *testing.T) artifacts.Layout {
	t.Helper()
	return artifacts.NewLayout(t.TempDir(), "test_story")
}

func TestStoryValidity(t *testing.T) {
	layout := storyLayout(t)
	validator := artifacts.Validator{}

	if validator.IsValid(layout, artifacts.KindStory) {
		t.Fatal("empty directory should not validate")
	}
	if err := layout.WriteParagraphs([]string{"Uno.", "Dos."}); err != nil {
		t.Fatalf("WriteParagraphs: %v", err)
	}
	if validator.IsValid(layout, artifacts.KindStory) {
		t.Fatal("missing prompts file should fail story validity")
	}
	if err := layout.WritePrompts([]string{"prompt one", "prompt two"}); err != nil {
		t.Fatalf("WritePrompts: %v", err)
	}
	if !validator.IsValid(layout, artifacts.KindStory) {
		t.Fatal("paragraphs + prompts should validate")
	}
}

func TestImagesValidityIsAllOrNothing(t *testing.T) {
	layout := storyLayout(t)
	validator := artifacts.Validator{}

	if err := layout.WritePrompts([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("WritePrompts: %v", err)
	}
	testsupport.WriteFile(t, layout.ImageFile(1), "png")
	testsupport.WriteFile(t, layout.ImageFile(3), "png")
	if validator.IsValid(layout, artifacts.KindImages) {
		t.Fatal("gap at index 2 should fail images validity")
	}
	testsupport.WriteFile(t, layout.ImageFile(2), "png")
	if !validator.IsValid(layout, artifacts.KindImages) {
		t.Fatal("complete image set should validate")
	}
}

func TestImagesInvalidWithZeroPrompts(t *testing.T) {
	layout := storyLayout(t)
	testsupport.WriteFile(t, layout.PromptsFile(), "\n\n")
	if (artifacts.Validator{}).IsValid(layout, artifacts.KindImages) {
		t.Fatal("zero prompts must not validate")
	}
}

func TestAudioValidityFollowsParagraphCount(t *testing.T) {
	layout := storyLayout(t)
	validator := artifacts.Validator{}

	if err := layout.WriteParagraphs([]string{"Uno.", "Dos."}); err != nil {
		t.Fatalf("WriteParagraphs: %v", err)
	}
	testsupport.WriteFile(t, layout.AudioFile(1), "mp3")
	if validator.IsValid(layout, artifacts.KindAudio) {
		t.Fatal("missing second clip should fail audio validity")
	}
	testsupport.WriteFile(t, layout.AudioFile(2), "mp3")
	if !validator.IsValid(layout, artifacts.KindAudio) {
		t.Fatal("complete audio set should validate")
	}
}

func TestVideoValidity(t *testing.T) {
	layout := storyLayout(t)
	validator := artifacts.Validator{}

	if validator.IsValid(layout, artifacts.KindVideo) {
		t.Fatal("missing video should not validate")
	}
	testsupport.WriteFile(t, layout.VideoFile(), "mp4 bytes")
	if !validator.IsValid(layout, artifacts.KindVideo) {
		t.Fatal("video file should validate")
	}
}

func TestParseParagraphsSplitsOnBlankLines(t *testing.T) {
	content := "First paragraph\nstill first.\n\nSecond.\n\n\nThird.\n"
	got := artifacts.ParseParagraphs(content)
	if len(got) != 3 {
		t.Fatalf("got %d paragraphs: %v", len(got), got)
	}
	if !strings.Contains(got[0], "still first") {
		t.Fatalf("multi-line paragraph split incorrectly: %q", got[0])
	}
}

func TestControlRoundTrip(t *testing.T) {
	layout := storyLayout(t)
	entries := []artifacts.ControlEntry{
		{Index: 1, Text: "Uno.", Image: "imagen_1.png", EstimatedDuration: 4.5},
		{Index: 2, Text: "Dos.", Image: "imagen_2.png", EstimatedDuration: 3.2},
	}
	if err := layout.WriteControl(entries); err != nil {
		t.Fatalf("WriteControl: %v", err)
	}
	got, err := layout.ReadControl()
	if err != nil {
		t.Fatalf("ReadControl: %v", err)
	}
	if len(got) != 2 || got[1].Image != "imagen_2.png" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
