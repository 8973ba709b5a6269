// Package catalog holds the static USSD menu tree and its message tables.
//
// A catalog is loaded once at startup from YAML. Every structural problem
// (dangling transition, node without transitions, message key missing in the
// default language) is reported by Load so the service refuses to start
// instead of failing individual requests.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml data/messages/*.yaml
var embedded embed.FS

// Kind is the closed set of node behaviours.
type Kind string

const (
	KindMenu   Kind = "menu"
	KindChoice Kind = "choice"
	KindInput  Kind = "input"
	KindFields Kind = "fields"
)

// Message keys the engine relies on regardless of the tree shape.
const (
	KeyInvalidSelection = "invalid_selection"
	KeyInvalidInput     = "invalid_input"
	KeySessionTooLong   = "session_too_long"
	KeyUnavailable      = "service_unavailable"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Target is where a keypress leads: another node, or a terminal action.
type Target struct {
	Node   string
	Action string
	Arg    string
}

func (t Target) Terminal() bool { return t.Action != "" }

// UnmarshalYAML accepts either a bare node id or an {action, arg} mapping.
func (t *Target) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Node = value.Value
		return nil
	}
	var raw struct {
		Action string `yaml:"action"`
		Arg    string `yaml:"arg"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.Action = raw.Action
	t.Arg = raw.Arg
	return nil
}

// Option is one entry of a named list (provinces, farming types, languages).
type Option struct {
	Key       string `yaml:"key"`
	Value     string `yaml:"value"`
	Label     string `yaml:"label"`
	Translate bool   `yaml:"translate"`
}

type Node struct {
	ID       string            `yaml:"-"`
	Kind     Kind              `yaml:"kind"`
	Text     string            `yaml:"text"`
	Options  map[string]Target `yaml:"options"`
	List     string            `yaml:"list"`
	Action   string            `yaml:"action"`
	Keywords map[string]string `yaml:"keywords"`
	Fields   []string          `yaml:"fields"`
}

type file struct {
	Root            string              `yaml:"root"`
	DefaultLanguage string              `yaml:"default_language"`
	Nodes           map[string]*Node    `yaml:"nodes"`
	Lists           map[string][]Option `yaml:"lists"`
}

type Catalog struct {
	root        string
	defaultLang string
	nodes       map[string]*Node
	lists       map[string][]Option
	messages    map[string]map[string]string
}

// Default loads the catalog compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// LoadDir loads catalog.yaml and messages/*.yaml from dir.
func LoadDir(dir string) (*Catalog, error) {
	return Load(os.DirFS(dir))
}

func Load(fsys fs.FS) (*Catalog, error) {
	b, err := fs.ReadFile(fsys, "catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	messages, err := loadMessages(fsys)
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		root:        f.Root,
		defaultLang: f.DefaultLanguage,
		nodes:       f.Nodes,
		lists:       f.Lists,
		messages:    messages,
	}
	if c.defaultLang == "" {
		c.defaultLang = "en"
	}
	for id, n := range c.nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: node %q is empty", ErrInvalidCatalog, id)
		}
		n.ID = id
		if n.Kind == KindChoice {
			c.expandChoice(n)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadMessages(fsys fs.FS) (map[string]map[string]string, error) {
	paths, err := fs.Glob(fsys, "messages/*.yaml")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(paths))
	for _, p := range paths {
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read messages %s: %w", p, err)
		}
		table := map[string]string{}
		if err := yaml.Unmarshal(b, &table); err != nil {
			return nil, fmt.Errorf("parse messages %s: %w", p, err)
		}
		lang := strings.TrimSuffix(path.Base(p), ".yaml")
		out[lang] = table
	}
	return out, nil
}

// expandChoice turns every list entry into a terminal transition carrying the entry value.
func (c *Catalog) expandChoice(n *Node) {
	if n.Options == nil {
		n.Options = map[string]Target{}
	}
	for _, o := range c.lists[n.List] {
		n.Options[o.Key] = Target{Action: n.Action, Arg: o.Value}
	}
}

func (c *Catalog) validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if _, ok := c.messages[c.defaultLang]; !ok {
		add("no messages for default language %q", c.defaultLang)
	}
	if _, ok := c.nodes[c.root]; !ok {
		add("root node %q not defined", c.root)
	}
	for _, key := range []string{KeyInvalidSelection, KeyInvalidInput, KeySessionTooLong, KeyUnavailable} {
		c.requireKey(key, add)
	}
	for _, id := range c.NodeIDs() {
		n := c.nodes[id]
		if n.Kind != KindFields {
			c.requireKey(n.Text, add)
		}
		switch n.Kind {
		case KindMenu, KindChoice:
			if n.Kind == KindChoice {
				if _, ok := c.lists[n.List]; !ok {
					add("node %q: unknown list %q", id, n.List)
				}
				if n.Action == "" {
					add("node %q: choice without action", id)
				}
			}
			if len(n.Options) == 0 {
				add("node %q has no transitions", id)
			}
			for key, t := range n.Options {
				if t.Terminal() {
					continue
				}
				if _, ok := c.nodes[t.Node]; !ok {
					add("node %q option %q: unknown target %q", id, key, t.Node)
				}
			}
		case KindInput:
			if n.Action == "" {
				add("node %q: input without action", id)
			}
			for word, target := range n.Keywords {
				if _, ok := c.nodes[target]; !ok {
					add("node %q keyword %q: unknown target %q", id, word, target)
				}
			}
		case KindFields:
			if n.Action == "" || len(n.Fields) == 0 {
				add("node %q: fields node needs fields and an action", id)
			}
			for _, f := range n.Fields {
				c.requireKey("enter_"+f, add)
				c.requireKey("invalid_"+f, add)
			}
		default:
			add("node %q: unknown kind %q", id, n.Kind)
		}
	}
	for name, list := range c.lists {
		for _, o := range list {
			if o.Translate {
				c.requireKey(o.Value, add)
			}
			if o.Key == "" || o.Value == "" {
				add("list %q: entry needs key and value", name)
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Catalog) requireKey(key string, add func(string, ...any)) {
	if key == "" {
		add("empty message key")
		return
	}
	if _, ok := c.messages[c.defaultLang][key]; !ok {
		add("message %q missing for %q", key, c.defaultLang)
	}
}

func (c *Catalog) Root() string            { return c.root }
func (c *Catalog) DefaultLanguage() string { return c.defaultLang }

// Node returns the node with the given id.
func (c *Catalog) Node(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// NodeIDs lists node ids in a stable order.
func (c *Catalog) NodeIDs() []string {
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Transitions returns a copy of the keypress table for a node.
func (c *Catalog) Transitions(id string) map[string]Target {
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	out := make(map[string]Target, len(n.Options))
	for k, t := range n.Options {
		out[k] = t
	}
	return out
}

// Actions lists every terminal action referenced by the tree.
func (c *Catalog) Actions() []string {
	seen := map[string]bool{}
	for _, n := range c.nodes {
		if n.Action != "" {
			seen[n.Action] = true
		}
		for _, t := range n.Options {
			if t.Terminal() {
				seen[t.Action] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Translate looks key up in lang, then the default language, then returns the key itself.
func (c *Catalog) Translate(key, lang string, subs map[string]string) string {
	text, ok := c.messages[lang][key]
	if !ok {
		text, ok = c.messages[c.defaultLang][key]
	}
	if !ok {
		text = key
	}
	return substitute(text, subs)
}

// Render returns the display text of a node. Ids are checked at load time, so
// an unknown id here is a programming error and renders as the id itself.
func (c *Catalog) Render(id, lang string, subs map[string]string) string {
	n, ok := c.nodes[id]
	if !ok {
		return id
	}
	if n.Kind == KindFields {
		return c.Translate("enter_"+n.Fields[0], lang, subs)
	}
	text := c.Translate(n.Text, lang, subs)
	if n.Kind != KindChoice {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for _, o := range c.lists[n.List] {
		b.WriteString("\n")
		b.WriteString(o.Key)
		b.WriteString(". ")
		b.WriteString(c.OptionLabel(o, lang))
	}
	return b.String()
}

// OptionLabel is the display label of a list entry in lang.
func (c *Catalog) OptionLabel(o Option, lang string) string {
	switch {
	case o.Translate:
		return c.Translate(o.Value, lang, nil)
	case o.Label != "":
		return o.Label
	default:
		return o.Value
	}
}

// Lookup finds the list entry whose value is v.
func (c *Catalog) Lookup(list, v string) (Option, bool) {
	for _, o := range c.lists[list] {
		if o.Value == v {
			return o, true
		}
	}
	return Option{}, false
}

func substitute(text string, subs map[string]string) string {
	if len(subs) == 0 || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(subs)*2)
	for k, v := range subs {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
