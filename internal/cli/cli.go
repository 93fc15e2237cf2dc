// Package cli holds the wiring shared by the recap commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

const DefaultModel = "gpt-5-mini"

// ParseLevel maps debug|info|warn|error onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (want debug|info|warn|error)", s)
}

// NewLogger returns a JSON logger on w. Commands log to stderr so stdout carries only
// the final summary line.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// LoadEnvFile loads KEY=value pairs from path into the process environment. Variables
// already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// APIKey prefers the flag value and falls back to OPENAI_API_KEY.
func APIKey(flagValue string) string {
	if k := strings.TrimSpace(flagValue); k != "" {
		return k
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// NarrativeClient wires an OpenAI-backed narrative client. Without an API key the client
// reports itself unavailable and every pipeline uses its template path.
func NarrativeClient(apiKey, model string, logger *slog.Logger) *provider.NarrativeClient {
	if model == "" {
		model = DefaultModel
	}
	if apiKey == "" {
		logger.Info("no OpenAI API key configured, narratives will use templates")
	}
	return provider.NewNarrativeClient(provider.NewOpenAIGenerator(apiKey, model), logger)
}

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now time.Time) (int, time.Month) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prev := first.AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}
