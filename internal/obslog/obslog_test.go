package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/duel-arena/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel, "WARN": zapcore.WarnLevel, "warning": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel, "": zapcore.InfoLevel, "bogus": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, f, err := build(config.LogConfig{Level: "debug", Format: "json", ToConsole: true}, &buf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if f != nil {
		t.Fatalf("unexpected file")
	}
	logger.Info("match_start", zap.String("match_id", "m1"))
	_ = logger.Sync()

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["msg"] != "match_start" || line["match_id"] != "m1" || line["level"] != "info" {
		t.Fatalf("line = %v", line)
	}
}

func TestBuildFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	logger, f, err := build(config.LogConfig{Level: "warn", Format: "legacy", ToFile: true, File: path}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer f.Close()
	logger.Info("dropped")
	logger.Warn("kept", zap.String("player_id", "ann"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") || !strings.Contains(out, " | ") {
		t.Fatalf("file output = %q", out)
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	before := L()
	if err := Init(config.LogConfig{Level: "error", Format: "console", ToConsole: true}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Sync()
	if L() == before {
		t.Fatalf("global logger not replaced")
	}
	if L().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at error level")
	}
}
