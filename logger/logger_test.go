package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/config"
)

func TestInitWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: "info", Console: &buf}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Close()

	log.Debug().Msg("hidden")
	log.Info().Str("image", "1.jpg").Msg("described")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines: %s", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if ev["service"] != "classnotes" || ev["image"] != "1.jpg" || ev["message"] != "described" {
		t.Fatalf("unexpected event: %v", ev)
	}
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	var console bytes.Buffer
	opts := FromConfig(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}, config.AxiomConfig{})
	opts.Console = &console
	if err := Init(opts); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Close()

	Get().Debug().Msg("to file")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing entry: %s", data)
	}
}
