package advisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"mudhumeni-backend/internal/logger"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient is optional; tests point it at a fake server.
	HTTPClient *http.Client
}

// OpenAIAdvisor talks to any OpenAI-compatible chat completions endpoint
// (Groq, OpenAI).
type OpenAIAdvisor struct {
	spec    *PromptSpec
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

func NewOpenAI(cfg Config, spec *PromptSpec, log *logger.Logger) (*OpenAIAdvisor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("advisor: api key is required")
	}
	if spec == nil {
		var err error
		if spec, err = DefaultPromptSpec(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logger.Nop()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIAdvisor{
		spec:    spec,
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
		log:     log,
	}, nil
}

func (a *OpenAIAdvisor) Topic(name string, uc UserContext, extra map[string]string) string {
	return a.spec.Topic(name, uc, extra)
}

func (a *OpenAIAdvisor) Advise(ctx context.Context, q Query) (string, error) {
	question := Sanitize(q.Question)
	if question == "" {
		return "", fmt.Errorf("advisor: empty question")
	}
	cp := a.spec.channel(q.Channel)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.spec.System(q.Channel, q.Context)},
	}
	history := q.Context.History
	if cp.History > 0 && len(history) > cp.History {
		history = history[len(history)-cp.History:]
	}
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		// Collapse blank lines to keep the prompt compact
		content := strings.ReplaceAll(strings.TrimSpace(t.Content), "\n\n", "\n")
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: cp.Temperature,
		MaxTokens:   cp.MaxTokens,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	a.log.Debug("advice generated", "channel", q.Channel, "model", a.model, "tokens", resp.Usage.TotalTokens, "duration", time.Since(start))
	return answer, nil
}
