package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/cli/config"
	domainConfig "github.com/secmon-lab/otomo/pkg/domain/model/config"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assistant.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadAssistantFile(t *testing.T) {
	path := writeTOML(t, `
confidence_threshold = 0.8
turn_timeout_sec = 120
pending_ttl_sec = 300

[[intent]]
name = "remember"
description = "store a personal fact"

[[intent]]
name = "chat"
description = "general conversation"

[confirmation]
affirmations = ["yes", "do it"]
denials = ["no", "stop"]
`)

	file, err := config.LoadAssistantFile(path)
	gt.NoError(t, err).Required()

	cfg := file.ToDomainConfig()
	gt.Array(t, cfg.Intents).Length(2)
	gt.Value(t, cfg.Intents[0].Name).Equal("remember")
	gt.Value(t, cfg.ConfidenceThreshold).Equal(0.8)
	gt.Value(t, cfg.TurnTimeout).Equal(2 * time.Minute)
	gt.Value(t, cfg.PendingTTL).Equal(5 * time.Minute)
	gt.Array(t, cfg.Confirmation.Affirmations).Equal([]string{"yes", "do it"})

	// unspecified settings keep the built-in defaults
	defaults := domainConfig.DefaultAssistantConfig()
	gt.Value(t, cfg.MemoryScoreThreshold).Equal(defaults.MemoryScoreThreshold)
	gt.Value(t, cfg.MaxClarificationAttempts).Equal(defaults.MaxClarificationAttempts)
}

func TestLoadAssistantFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "intent without description",
			content: `
[[intent]]
name = "remember"
`,
		},
		{
			name: "duplicate intent name",
			content: `
[[intent]]
name = "remember"
description = "store a fact"

[[intent]]
name = "remember"
description = "store another fact"
`,
		},
		{
			name:    "confidence threshold out of range",
			content: `confidence_threshold = 1.5`,
		},
		{
			name:    "zero clarification attempts",
			content: `max_clarification_attempts = 0`,
		},
		{
			name:    "zero pending ttl",
			content: `pending_ttl_sec = 0`,
		},
		{
			name:    "broken TOML",
			content: `[[intent`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTOML(t, tt.content)
			_, err := config.LoadAssistantFile(path)
			gt.Error(t, err)
		})
	}
}

func TestLoadAssistantFileNotFound(t *testing.T) {
	_, err := config.LoadAssistantFile(filepath.Join(t.TempDir(), "missing.toml"))
	gt.Error(t, err)
}

func TestAssistantConfigureDefaults(t *testing.T) {
	var a config.Assistant

	cfg, err := a.Configure()
	gt.NoError(t, err).Required()

	defaults := domainConfig.DefaultAssistantConfig()
	gt.Value(t, cfg.ConfidenceThreshold).Equal(defaults.ConfidenceThreshold)
	gt.Array(t, cfg.Intents).Length(len(defaults.Intents))
}
