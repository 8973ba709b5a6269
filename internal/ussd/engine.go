// Package ussd turns a stateless USSD round-trip into the next screen.
//
// Every request carries the whole keypress path of the dial-in. The engine
// replays that path from the root of the catalog on each request instead of
// trusting a stored position, so a duplicated or reordered intermediate
// delivery can never move the caller somewhere else. The stored session only
// supplies identity, language and the last answer for duplicate deliveries.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/logger"
	"mudhumeni-backend/internal/store"
)

const (
	DefaultMaxDepth      = 14
	DefaultActionTimeout = 8 * time.Second
	pathSeparator        = "*"
)

var ErrConfig = errors.New("ussd: invalid configuration")

type Options struct {
	// MaxDepth is the longest keypress path served before the session is ended.
	MaxDepth      int
	ActionTimeout time.Duration
	// Substitutions fills runtime values such as {season} into menu text.
	Substitutions func(lang string) map[string]string
	Logger        *logger.Logger
}

type Engine struct {
	cat      *catalog.Catalog
	sessions store.SessionStore
	prefs    store.PreferenceStore
	actions  Actions
	maxDepth int
	timeout  time.Duration
	subs     func(lang string) map[string]string
	log      *logger.Logger
}

// NewEngine checks that every action and field the catalog references can
// be served. prefs may be nil when callers are never recognised by phone.
func NewEngine(cat *catalog.Catalog, sessions store.SessionStore, prefs store.PreferenceStore, actions Actions, opts Options) (*Engine, error) {
	if cat == nil || sessions == nil {
		return nil, fmt.Errorf("%w: catalog and session store are required", ErrConfig)
	}
	var missing []string
	for _, name := range cat.Actions() {
		if a, ok := actions[name]; !ok || a.Run == nil {
			missing = append(missing, "action "+name)
		}
	}
	for _, id := range cat.NodeIDs() {
		n, _ := cat.Node(id)
		for _, f := range n.Fields {
			if _, ok := FieldRanges[f]; !ok {
				missing = append(missing, "range for field "+f)
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}

	e := &Engine{
		cat:      cat,
		sessions: sessions,
		prefs:    prefs,
		actions:  actions,
		maxDepth: opts.MaxDepth,
		timeout:  opts.ActionTimeout,
		subs:     opts.Substitutions,
		log:      opts.Logger,
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxDepth
	}
	if e.timeout <= 0 {
		e.timeout = DefaultActionTimeout
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	return e, nil
}

// Step answers one request. It never fails: every problem becomes a
// well-formed CON or END screen.
func (e *Engine) Step(ctx context.Context, req Request) Response {
	text := strings.TrimSpace(req.Text)
	sess, fresh := e.session(ctx, req)

	if !fresh && sess.LastResponse != "" && sess.LastPath == text {
		e.log.Debug("duplicate delivery, replaying cached response", "session_id", sess.Key)
		return ParseResponse(sess.LastResponse)
	}

	w := e.walk(splitPath(text))

	var resp Response
	switch {
	case w.tooLong:
		resp = End(e.cat.Translate(catalog.KeySessionTooLong, sess.Language, nil))
	case w.action != nil:
		resp = End(e.invoke(ctx, sess, w))
	default:
		resp = Continue(e.render(sess.Language, w))
	}

	sess.Node = w.node
	sess.Fields = w.fields
	if resp.End {
		sess.Fields = nil
	}
	sess.LastPath = text
	sess.LastResponse = resp.String()
	sess.Complete = resp.End
	if sess.Key != "" {
		if err := e.sessions.Put(ctx, sess); err != nil {
			e.log.Error("failed to save session", "session_id", sess.Key, "error", err)
		}
	}
	return resp
}

// session loads the stored session or starts a new one. A store failure is
// logged and served as a new session.
func (e *Engine) session(ctx context.Context, req Request) (*store.Session, bool) {
	if req.SessionID != "" {
		sess, err := e.sessions.Get(ctx, req.SessionID)
		if err != nil {
			e.log.Error("failed to load session", "session_id", req.SessionID, "error", err)
		}
		if sess != nil {
			return sess, false
		}
	}

	sess := &store.Session{
		Key:         req.SessionID,
		UserID:      uuid.NewString(),
		Phone:       req.Phone,
		ServiceCode: req.ServiceCode,
		Node:        e.cat.Root(),
		Language:    e.cat.DefaultLanguage(),
	}
	if e.prefs != nil && req.Phone != "" {
		pref, err := e.prefs.GetByPhone(ctx, req.Phone)
		switch {
		case err != nil:
			e.log.Warn("failed to load preferences", "phone", req.Phone, "error", err)
		case pref != nil:
			if pref.UserID != "" {
				sess.UserID = pref.UserID
			}
			if pref.Language != "" {
				sess.Language = pref.Language
			}
		}
	}
	e.log.Info("new ussd session", "session_id", sess.Key, "phone", sess.Phone, "language", sess.Language)
	return sess, true
}

// walkResult is where a keypress path leads.
type walkResult struct {
	node   string
	fields []store.FieldValue
	// notice is the message key shown above the screen, if any.
	notice  string
	action  *catalog.Target
	input   string
	tooLong bool
}

// walk replays keys from the root. It is pure: the same keys always produce
// the same result, and no action is run here.
func (e *Engine) walk(keys []string) walkResult {
	w := walkResult{node: e.cat.Root()}
	if len(keys) > e.maxDepth {
		w.tooLong = true
		return w
	}

	for i := 0; i < len(keys); i++ {
		n, ok := e.cat.Node(w.node)
		if !ok {
			w.tooLong = true
			return w
		}
		key := strings.TrimSpace(keys[i])
		last := i == len(keys)-1

		switch n.Kind {
		case catalog.KindInput:
			if target, ok := n.Keywords[strings.ToLower(key)]; ok {
				w.node, w.notice = target, ""
				continue
			}
			input := strings.TrimSpace(strings.Join(keys[i:], pathSeparator))
			if input == "" {
				w.notice = catalog.KeyInvalidInput
				return w
			}
			w.action = &catalog.Target{Action: n.Action}
			w.input = input
			return w

		case catalog.KindFields:
			c := Collect(n.Fields, keys[i:])
			w.fields, w.notice = c.Values, c.Notice
			if c.Complete {
				if i+c.Consumed < len(keys) {
					w.tooLong = true
					return w
				}
				w.action = &catalog.Target{Action: n.Action}
			}
			return w

		default:
			t, ok := n.Options[key]
			if !ok {
				w.notice = catalog.KeyInvalidSelection
				continue
			}
			if t.Terminal() {
				// Nothing may follow a terminal in the same dial-in.
				if !last {
					w.tooLong = true
					return w
				}
				w.action = &t
				return w
			}
			w.node, w.notice, w.fields = t.Node, "", nil
		}
	}
	return w
}

func (e *Engine) render(lang string, w walkResult) string {
	var subs map[string]string
	if e.subs != nil {
		subs = e.subs(lang)
	}
	var body string
	n, _ := e.cat.Node(w.node)
	if n != nil && n.Kind == catalog.KindFields {
		body = e.cat.Translate("enter_"+n.Fields[len(w.fields)], lang, subs)
	} else {
		body = e.cat.Render(w.node, lang, subs)
	}
	if w.notice == "" {
		return body
	}
	return e.cat.Translate(w.notice, lang, nil) + ". " + body
}

func (e *Engine) invoke(ctx context.Context, sess *store.Session, w walkResult) string {
	call := Call{
		Action:      w.action.Action,
		Arg:         w.action.Arg,
		Input:       w.input,
		Fields:      w.fields,
		UserID:      sess.UserID,
		Phone:       sess.Phone,
		ServiceCode: sess.ServiceCode,
		Language:    sess.Language,
	}
	a := e.actions[call.Action]

	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := a.Run(actx, call)
	if err == nil && strings.TrimSpace(out) != "" {
		e.log.Info("action completed", "action", call.Action, "arg", call.Arg, "user_id", call.UserID, "duration", time.Since(start))
		return out
	}

	e.log.Warn("action failed, using fallback", "action", call.Action, "arg", call.Arg, "user_id", call.UserID, "error", err)
	if a.Fallback != nil {
		if fb := a.Fallback(call); fb != "" {
			return fb
		}
	}
	return e.cat.Translate(catalog.KeyUnavailable, sess.Language, nil)
}

func splitPath(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, pathSeparator)
}
