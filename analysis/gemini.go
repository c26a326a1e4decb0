package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mmonsif/aeroconnect/models"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini calls Google's Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

var reportSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {Type: genai.TypeString},
		"entities": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"locations": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"equipment": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"personnel": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
		},
	},
	Required: []string{"summary", "entities"},
}

func (g *Gemini) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no response generated")
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *Gemini) AnalyzeSafetyReport(ctx context.Context, description string) (*Result, error) {
	text, err := g.generate(ctx, fmt.Sprintf(safetyPrompt, description), reportSchema)
	if err != nil {
		return nil, err
	}
	return ParseResult(text)
}

func (g *Gemini) Translate(ctx context.Context, text, language string) (string, error) {
	return g.generate(ctx, fmt.Sprintf(translatePrompt, language, text), nil)
}

func (g *Gemini) SummarizeConversation(ctx context.Context, lines []string) (string, error) {
	return g.generate(ctx, fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")), nil)
}

func (g *Gemini) Briefing(ctx context.Context, tasks []models.Task) (string, error) {
	return g.generate(ctx, fmt.Sprintf(briefingPrompt, briefingInput(tasks)), nil)
}
