package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "images", "submit", "leonardo request failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to survive")
	}
	if !strings.Contains(err.Error(), "images: submit: leonardo request failed") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "story", "generate", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("nil marker should default to transient")
	}
}

func TestClassification(t *testing.T) {
	terminal := services.Wrap(services.ErrTerminal, "images", "auth", "api key rejected", nil)
	if !services.IsTerminal(terminal) {
		t.Fatal("terminal marker not classified terminal")
	}
	if services.IsTransient(terminal) {
		t.Fatal("terminal error must not classify as transient")
	}

	transient := services.Wrap(services.ErrTimeout, "images", "poll", "generation still queued", nil)
	if !services.IsTransient(transient) {
		t.Fatal("timeout should classify as transient")
	}

	validation := services.Wrap(services.ErrValidation, "story", "reconcile", "too few paragraphs", nil)
	if !services.IsTerminal(validation) {
		t.Fatal("validation errors are not retryable")
	}
}
