package main

import (
	"strings"
	"testing"
)

func TestRenderQueueTableRightAlignsIDs(t *testing.T) {
	out := renderQueueTable(
		[]string{"ID", "Title", "Story"},
		[][]string{
			{"7", "First Story", "realizada"},
			{"12", "Second Story", "pendiente"},
		},
	)
	for _, want := range []string{"ID", "First Story", "pendiente"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
	var short string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "First Story") {
			short = line
		}
	}
	if !strings.Contains(short, " 7 ") || strings.Contains(short, "7  ") {
		t.Fatalf("single-digit id should be right-aligned:\n%s", out)
	}
}

func TestRenderQueueTablePadsShortRows(t *testing.T) {
	out := renderQueueTable(
		[]string{"ID", "Title", "Error"},
		[][]string{{"1", "Only Title"}},
	)
	if !strings.Contains(out, "Only Title") {
		t.Fatalf("row content missing:\n%s", out)
	}
}
