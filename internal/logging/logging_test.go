package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSetupProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("venue", "Blue Note").Msg("toggled")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "toggled" || entry["venue"] != "Blue Note" {
		t.Errorf("entry = %v", entry)
	}
	if entry["service"] != "karaoke-booking" {
		t.Errorf("service field = %v", entry["service"])
	}
}

func TestSetupDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	logger.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
