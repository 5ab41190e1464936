package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	contents := fmt.Sprintf(`[paths]
base_dir = %q
music_dir = %q
log_dir = %q
`, filepath.Join(base, "stories"), filepath.Join(base, "music"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil || len(data) == 0 {
		t.Fatalf("sample config missing: %v", err)
	}
	if _, err := execute(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := execute(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestQueueAddListRetry(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "queue", "add", "My First Reel")
	if err != nil {
		t.Fatalf("queue add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "added item 1: My First Reel") {
		t.Fatalf("add output: %s", out)
	}
	if !strings.Contains(out, "my_first_reel") {
		t.Fatalf("add output missing slug: %s", out)
	}

	out, err = execute(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "My First Reel") || !strings.Contains(out, "pendiente") {
		t.Fatalf("list output: %s", out)
	}

	out, err = execute(t, "--config", cfgPath, "queue", "retry", "1")
	if err != nil {
		t.Fatalf("queue retry: %v\n%s", err, out)
	}
	if !strings.Contains(out, "cleared error on item 1") {
		t.Fatalf("retry output: %s", out)
	}

	out, err = execute(t, "--config", cfgPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v\n%s", err, out)
	}
	if !strings.Contains(out, "total:     1") {
		t.Fatalf("health output: %s", out)
	}
}

func TestQueueClearRequiresForce(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := execute(t, "--config", cfgPath, "queue", "clear"); err == nil {
		t.Fatal("clear without --force must fail")
	}
	out, err := execute(t, "--config", cfgPath, "queue", "clear", "--force")
	if err != nil {
		t.Fatalf("queue clear --force: %v\n%s", err, out)
	}
	if !strings.Contains(out, "removed 0 work items") {
		t.Fatalf("clear output: %s", out)
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := execute(t, "--config", cfgPath, "run", "--mode", "audio"); err == nil {
		t.Fatal("unknown mode must fail")
	}
}
