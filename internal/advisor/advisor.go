// Package advisor asks a hosted language model for farming advice.
package advisor

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

type Channel string

const (
	ChannelUSSD Channel = "ussd"
	ChannelWeb  Channel = "web"
)

var (
	ErrUnavailable = errors.New("advisor: unavailable")
	ErrEmptyAnswer = errors.New("advisor: empty answer")
)

// Turn is one earlier exchange of a conversation.
type Turn struct {
	Role    string
	Content string
}

// UserContext is what the model is told about the farmer.
type UserContext struct {
	Location      string
	FarmingType   string
	Season        string
	SeasonalCrops []string
	History       []Turn
}

type Query struct {
	Channel  Channel
	Question string
	Context  UserContext
}

// Advisor answers free-text farming questions. Callers must have a fallback:
// any call may fail or time out.
type Advisor interface {
	Advise(ctx context.Context, q Query) (string, error)
	// Topic expands a canned topic name into a question, or "" if unknown.
	Topic(name string, uc UserContext, extra map[string]string) string
}

var unsafeChars = regexp.MustCompile(`[${}()"]`)

// Sanitize strips characters that could be read as template or shell syntax.
func Sanitize(s string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(s, ""))
}

// Static never reaches a model; every call fails so callers serve their
// pre-written text. Used when no provider is configured.
type Static struct {
	spec *PromptSpec
}

func NewStatic() *Static {
	spec, _ := DefaultPromptSpec()
	return &Static{spec: spec}
}

func (s *Static) Advise(ctx context.Context, q Query) (string, error) {
	return "", ErrUnavailable
}

func (s *Static) Topic(name string, uc UserContext, extra map[string]string) string {
	return s.spec.Topic(name, uc, extra)
}
