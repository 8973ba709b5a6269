package advisor

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type ChannelPrompt struct {
	System      string  `yaml:"system"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	History     int     `yaml:"history"`
}

type PromptSpec struct {
	Channels map[Channel]ChannelPrompt `yaml:"channels"`
	Topics   map[string]string         `yaml:"topics"`
}

func DefaultPromptSpec() (*PromptSpec, error) {
	return parsePromptSpec(defaultPrompts)
}

// LoadPromptSpec reads a prompt file, or the built-in prompts when path is empty.
func LoadPromptSpec(path string) (*PromptSpec, error) {
	if path == "" {
		return DefaultPromptSpec()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parsePromptSpec(b)
}

func parsePromptSpec(b []byte) (*PromptSpec, error) {
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("parse prompt spec: %w", err)
	}
	for _, ch := range []Channel{ChannelUSSD, ChannelWeb} {
		if strings.TrimSpace(spec.Channels[ch].System) == "" {
			return nil, fmt.Errorf("prompt spec: missing system prompt for %q", ch)
		}
	}
	return &spec, nil
}

func (p *PromptSpec) channel(ch Channel) ChannelPrompt {
	cp, ok := p.Channels[ch]
	if !ok {
		cp = p.Channels[ChannelWeb]
	}
	if cp.Temperature <= 0 {
		cp.Temperature = 0.2
	}
	if cp.MaxTokens <= 0 {
		cp.MaxTokens = 300
	}
	return cp
}

// System renders the system prompt for a channel.
func (p *PromptSpec) System(ch Channel, uc UserContext) string {
	return fill(p.channel(ch).System, uc, nil)
}

// Topic renders a canned question. extra fills placeholders such as {crop}.
func (p *PromptSpec) Topic(name string, uc UserContext, extra map[string]string) string {
	tpl, ok := p.Topics[name]
	if !ok {
		return ""
	}
	return fill(tpl, uc, extra)
}

func fill(tpl string, uc UserContext, extra map[string]string) string {
	location := uc.Location
	if location == "" {
		location = "Southern Africa"
	}
	farmingType := uc.FarmingType
	if farmingType == "" {
		farmingType = "various types of"
	}
	crops := uc.SeasonalCrops
	if len(crops) > 5 {
		crops = crops[:5]
	}
	pairs := []string{
		"{location}", location,
		"{farming_type}", farmingType,
		"{season}", uc.Season,
		"{seasonal_crops}", strings.Join(crops, ", "),
	}
	for k, v := range extra {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
