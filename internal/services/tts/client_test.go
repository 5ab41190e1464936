package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/services"
	"reelsmith/internal/services/tts"
)

func ttsConfig(baseURL string) config.TTS {
	return config.TTS{
		APIKey:         "xi-test",
		BaseURL:        baseURL,
		Voice:          "voice-1",
		TimeoutSeconds: 5,
	}
}

func TestSynthesizeWritesAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["text"] != "Hola mundo" {
			t.Errorf("text = %v", payload["text"])
		}
		_, _ = w.Write([]byte("ID3mp3-bytes"))
	}))
	defer server.Close()

	client := tts.NewClient(ttsConfig(server.URL))
	out := filepath.Join(t.TempDir(), "voz_parrafo_1.mp3")
	if err := client.Synthesize(context.Background(), "Hola mundo", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "ID3mp3-bytes" {
		t.Fatalf("audio file = %q, err %v", data, err)
	}
}

func TestSynthesizeEmptyResponseFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := tts.NewClient(ttsConfig(server.URL))
	out := filepath.Join(t.TempDir(), "voz_parrafo_1.mp3")
	if err := client.Synthesize(context.Background(), "texto", out); err == nil {
		t.Fatal("empty audio must fail")
	}
	if fileutil.ExistsNonEmpty(out) {
		t.Fatal("failed synthesis must not leave a non-empty file")
	}
}

func TestSynthesizeAuthFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := tts.NewClient(ttsConfig(server.URL))
	err := client.Synthesize(context.Background(), "texto", filepath.Join(t.TempDir(), "out.mp3"))
	if err == nil || !services.IsTerminal(err) {
		t.Fatalf("expected terminal auth error, got %v", err)
	}
}

func TestSynthesizeServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := tts.NewClient(ttsConfig(server.URL))
	err := client.Synthesize(context.Background(), "texto", filepath.Join(t.TempDir(), "out.mp3"))
	if err == nil || !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSynthesizeMissingVoiceFails(t *testing.T) {
	cfg := ttsConfig("http://unused.invalid")
	cfg.Voice = ""
	client := tts.NewClient(cfg)
	if err := client.Synthesize(context.Background(), "texto", filepath.Join(t.TempDir(), "out.mp3")); err == nil {
		t.Fatal("missing voice must fail before any request")
	}
}
