package ussd

import (
	"context"

	"mudhumeni-backend/internal/store"
)

// Call carries everything a terminal action may need about the caller and
// the input that led to it.
type Call struct {
	Action string
	Arg    string
	// Input is the free text typed at an input node.
	Input string
	// Fields is the completed record of a fields node.
	Fields      []store.FieldValue
	UserID      string
	Phone       string
	ServiceCode string
	Language    string
}

// Field returns the collected value of name.
func (c Call) Field(name string) (float64, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Action is a terminal handler. Run may call slow collaborators; when it
// fails or returns nothing the caller sees Fallback instead.
type Action struct {
	Run      func(ctx context.Context, call Call) (string, error)
	Fallback func(call Call) string
}

// Actions maps the action names used by the catalog to their handlers.
type Actions map[string]Action
