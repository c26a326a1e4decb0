// Package analysis wraps the AI vendor used to summarize safety reports,
// translate text and draft shift briefings. Every result is advisory: callers
// treat any error as "no analysis available".
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmonsif/aeroconnect/models"
)

// ErrUnavailable is returned when no AI backend is configured.
var ErrUnavailable = errors.New("analysis unavailable")

// Result is the structured analysis of a safety report.
type Result struct {
	Summary  string                `json:"summary"`
	Entities models.ReportEntities `json:"entities"`
}

type Analyzer interface {
	AnalyzeSafetyReport(ctx context.Context, description string) (*Result, error)
	Translate(ctx context.Context, text, language string) (string, error)
	SummarizeConversation(ctx context.Context, lines []string) (string, error)
	Briefing(ctx context.Context, tasks []models.Task) (string, error)
}

// Config selects and configures a backend. Provider is "gemini", "openai" or "" (disabled).
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds the analyzer named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Analyzer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none", "disabled":
		return Disabled{}, nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

// Disabled is the analyzer used when no backend is configured.
type Disabled struct{}

func (Disabled) AnalyzeSafetyReport(context.Context, string) (*Result, error) {
	return nil, ErrUnavailable
}

func (Disabled) Translate(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

func (Disabled) SummarizeConversation(context.Context, []string) (string, error) {
	return "", ErrUnavailable
}

func (Disabled) Briefing(context.Context, []models.Task) (string, error) {
	return "", ErrUnavailable
}

const safetyPrompt = `You are an airport ground-safety analyst. Analyze the incident report below.
Return JSON with "summary" (one or two sentences) and "entities" containing
"locations", "equipment" and "personnel" arrays of strings.

Report:
%s`

const translatePrompt = `Translate the following text into %s. Return only the translation.

%s`

const summaryPrompt = `Summarize this ground-operations conversation in three bullet points.

%s`

const briefingPrompt = `Write a short shift briefing for airport ground staff from these open tasks.
Group by priority and mention locations.

%s`

func briefingInput(tasks []models.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] %s (%s, %s) assigned to %s\n", t.Priority, t.Title, t.Location, t.Status, t.AssignedTo)
	}
	return b.String()
}

// ParseResult decodes a model response, tolerating markdown code fences.
func ParseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if res.Summary == "" {
		return nil, errors.New("analysis has no summary")
	}
	return &res, nil
}
