package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptSpec is one prompt with its model parameters
type PromptSpec struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`

	user *template.Template
}

// PromptConfig holds the prompts used by the analyzer
type PromptConfig struct {
	Triage PromptSpec `yaml:"triage"`
}

// triageInput is the data the triage user template is rendered with
type triageInput struct {
	Title       string
	Description string
}

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() (*PromptConfig, error) {
	return parsePrompts(defaultPrompts)
}

// LoadPrompts loads prompt configuration from a YAML file
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return parsePrompts(data)
}

// parsePrompts decodes the YAML and compiles every user template up front,
// so a bad prompt file fails at startup instead of on the first incident.
func parsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if err := prompts.Triage.compile("triage"); err != nil {
		return nil, err
	}
	return &prompts, nil
}

func (p *PromptSpec) compile(name string) error {
	if strings.TrimSpace(p.UserTemplate) == "" {
		return fmt.Errorf("prompts: %s.user_template is empty", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(p.UserTemplate)
	if err != nil {
		return fmt.Errorf("prompts: %s.user_template: %w", name, err)
	}
	// A dry run catches references to fields the input does not have
	if err := tmpl.Execute(&bytes.Buffer{}, triageInput{}); err != nil {
		return fmt.Errorf("prompts: %s.user_template: %w", name, err)
	}
	p.user = tmpl
	return nil
}

// Render fills the user template
func (p *PromptSpec) Render(data any) (string, error) {
	if p.user == nil {
		if err := p.compile("prompt"); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if err := p.user.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
