package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmonsif/aeroconnect/models"
	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAI calls any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model}
}

func (o *OpenAI) complete(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You assist airport ground-operations staff."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response generated")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) AnalyzeSafetyReport(ctx context.Context, description string) (*Result, error) {
	text, err := o.complete(ctx, fmt.Sprintf(safetyPrompt, description), true)
	if err != nil {
		return nil, err
	}
	return ParseResult(text)
}

func (o *OpenAI) Translate(ctx context.Context, text, language string) (string, error) {
	return o.complete(ctx, fmt.Sprintf(translatePrompt, language, text), false)
}

func (o *OpenAI) SummarizeConversation(ctx context.Context, lines []string) (string, error) {
	return o.complete(ctx, fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")), false)
}

func (o *OpenAI) Briefing(ctx context.Context, tasks []models.Task) (string, error) {
	return o.complete(ctx, fmt.Sprintf(briefingPrompt, briefingInput(tasks)), false)
}
