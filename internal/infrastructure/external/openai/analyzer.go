package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// Config holds the analyzer settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Analyzer implements port.IncidentAnalyzer using a chat completion model
type Analyzer struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

var _ port.IncidentAnalyzer = (*Analyzer)(nil)

// NewAnalyzer creates a new triage analyzer
func NewAnalyzer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Analyzer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type triageResponse struct {
	Severity              string `json:"severity"`
	SuggestedActionsTaken string `json:"suggestedActionsTaken"`
	Reasoning             string `json:"reasoning"`
}

// Analyze asks the model for a severity and first actions
func (a *Analyzer) Analyze(ctx context.Context, title, description string) (*port.TriageResult, error) {
	prompt, err := a.prompts.Triage.Render(triageInput{Title: title, Description: description})
	if err != nil {
		return nil, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.prompts.Triage.Temperature,
		MaxTokens:   a.prompts.Triage.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.prompts.Triage.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var parsed triageResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Some models still wrap the object in prose or code fences
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &parsed) != nil {
			a.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	priority, ok := normalizePriority(parsed.Severity)
	if !ok {
		return nil, fmt.Errorf("unexpected severity %q", parsed.Severity)
	}
	actions := strings.TrimSpace(parsed.SuggestedActionsTaken)
	if actions == "" {
		return nil, errors.New("response is missing suggestedActionsTaken")
	}

	a.logger.Info("Incident triage completed",
		zap.String("priority", priority),
		zap.Int("tokens", resp.Usage.TotalTokens))

	return &port.TriageResult{
		Priority:         priority,
		SuggestedActions: actions,
		Reasoning:        parsed.Reasoning,
	}, nil
}

func normalizePriority(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return entity.PriorityLow, true
	case "medium":
		return entity.PriorityMedium, true
	case "high":
		return entity.PriorityHigh, true
	case "critical":
		return entity.PriorityCritical, true
	}
	return "", false
}

// extractJSON returns the outermost {...} span of content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
