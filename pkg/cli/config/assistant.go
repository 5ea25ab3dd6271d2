package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/otomo/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Assistant holds CLI flags for the assistant behavior configuration
type Assistant struct {
	path string
}

// Flags returns CLI flags for assistant configuration
func (a *Assistant) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "assistant-config",
			Usage:       "Path to assistant behavior TOML file (built-in defaults when empty)",
			Sources:     cli.EnvVars("OTOMO_ASSISTANT_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the behavior settings, falling back to the defaults when
// no file path is given
func (a *Assistant) Configure() (*domainConfig.AssistantConfig, error) {
	if a.path == "" {
		return domainConfig.DefaultAssistantConfig(), nil
	}
	file, err := LoadAssistantFile(a.path)
	if err != nil {
		return nil, err
	}
	return file.ToDomainConfig(), nil
}

// AssistantFile is the TOML representation of the behavior configuration.
// Fields left out of the file keep their built-in defaults.
type AssistantFile struct {
	Intents []IntentLabel `toml:"intent"`

	ConfidenceThreshold      *float64 `toml:"confidence_threshold"`
	MemoryScoreThreshold     *float64 `toml:"memory_score_threshold"`
	MaxClarificationAttempts *int     `toml:"max_clarification_attempts"`
	MaxHistoryTurns          *int     `toml:"max_history_turns"`
	TurnTimeoutSec           *int     `toml:"turn_timeout_sec"`
	PendingTTLSec            *int     `toml:"pending_ttl_sec"`

	Confirmation Confirmation `toml:"confirmation"`
}

// IntentLabel is one intent label definition
type IntentLabel struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Validate checks if the IntentLabel is valid
func (l *IntentLabel) Validate() error {
	if l.Name == "" {
		return goerr.New("intent name is required")
	}
	if l.Description == "" {
		return goerr.New("intent description is required", goerr.V("name", l.Name))
	}
	return nil
}

// Confirmation holds the yes/no vocabulary
type Confirmation struct {
	Affirmations []string `toml:"affirmations"`
	Denials      []string `toml:"denials"`
}

// Validate checks if the AssistantFile is valid
func (f *AssistantFile) Validate() error {
	names := make(map[string]bool)
	for _, label := range f.Intents {
		if err := label.Validate(); err != nil {
			return goerr.Wrap(err, "invalid intent label")
		}
		if names[label.Name] {
			return goerr.New("duplicate intent name", goerr.V("name", label.Name))
		}
		names[label.Name] = true
	}

	if f.ConfidenceThreshold != nil && (*f.ConfidenceThreshold < 0 || *f.ConfidenceThreshold > 1) {
		return goerr.New("confidence_threshold must be between 0 and 1", goerr.V("value", *f.ConfidenceThreshold))
	}
	if f.MemoryScoreThreshold != nil && (*f.MemoryScoreThreshold < 0 || *f.MemoryScoreThreshold > 1) {
		return goerr.New("memory_score_threshold must be between 0 and 1", goerr.V("value", *f.MemoryScoreThreshold))
	}
	if f.MaxClarificationAttempts != nil && *f.MaxClarificationAttempts < 1 {
		return goerr.New("max_clarification_attempts must be at least 1")
	}
	if f.MaxHistoryTurns != nil && *f.MaxHistoryTurns < 2 {
		return goerr.New("max_history_turns must be at least 2")
	}
	if f.TurnTimeoutSec != nil && *f.TurnTimeoutSec < 1 {
		return goerr.New("turn_timeout_sec must be at least 1")
	}
	if f.PendingTTLSec != nil && *f.PendingTTLSec < 1 {
		return goerr.New("pending_ttl_sec must be at least 1")
	}

	return nil
}

// LoadAssistantFile loads and validates a behavior configuration file
func LoadAssistantFile(path string) (*AssistantFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var file AssistantFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V("path", path))
	}

	return &file, nil
}

// ToDomainConfig converts the file into the domain behavior config, filling
// omitted values from the defaults
func (f *AssistantFile) ToDomainConfig() *domainConfig.AssistantConfig {
	cfg := domainConfig.DefaultAssistantConfig()

	if len(f.Intents) > 0 {
		intents := make([]domainConfig.IntentLabel, len(f.Intents))
		for i, label := range f.Intents {
			intents[i] = domainConfig.IntentLabel{
				Name:        label.Name,
				Description: label.Description,
			}
		}
		cfg.Intents = intents
	}

	if f.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *f.ConfidenceThreshold
	}
	if f.MemoryScoreThreshold != nil {
		cfg.MemoryScoreThreshold = *f.MemoryScoreThreshold
	}
	if f.MaxClarificationAttempts != nil {
		cfg.MaxClarificationAttempts = *f.MaxClarificationAttempts
	}
	if f.MaxHistoryTurns != nil {
		cfg.MaxHistoryTurns = *f.MaxHistoryTurns
	}
	if f.TurnTimeoutSec != nil {
		cfg.TurnTimeout = time.Duration(*f.TurnTimeoutSec) * time.Second
	}
	if f.PendingTTLSec != nil {
		cfg.PendingTTL = time.Duration(*f.PendingTTLSec) * time.Second
	}

	if len(f.Confirmation.Affirmations) > 0 {
		cfg.Confirmation.Affirmations = f.Confirmation.Affirmations
	}
	if len(f.Confirmation.Denials) > 0 {
		cfg.Confirmation.Denials = f.Confirmation.Denials
	}

	return cfg
}
