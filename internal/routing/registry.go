package routing

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hybridz/telegram-fanout/internal/telegram"
)

// Wildcard in an allowedChats list matches every entity id in the category.
const Wildcard = "All"

// Endpoint is where a module receives routed updates.
type Endpoint struct {
	Scheme string `yaml:"type"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Path   string `yaml:"endpoint"`
}

// URL renders the endpoint as a dispatchable URL.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, e.Host, e.Port, e.Path)
}

// ChatRef is one allowedChats entry: a numeric chat id or the wildcard.
// It decodes from either a YAML string or a bare integer scalar.
type ChatRef string

func (c *ChatRef) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("chat id must be a scalar, got %s node", nodeKind(n.Kind))
	}
	*c = ChatRef(n.Value)
	return nil
}

// ModuleConfig is the raw, unparsed rule set for one consumer module.
// Map keys in AllowedUpdates/AllowedChats are comma-delimited source lists;
// names are case-insensitive and accept snake_case or PascalCase.
type ModuleConfig struct {
	Name           string               `yaml:"-"`
	In             Endpoint             `yaml:"in"`
	AllowedUpdates map[string][]string  `yaml:"allowedUpdates"`
	AllowedChats   map[string][]ChatRef `yaml:"allowedChats"`
}

// ModulesDoc is the parsed modules document: the shared bot token plus the
// module configs in document order.
type ModulesDoc struct {
	Token   string
	Modules []ModuleConfig
}

// LoadModulesFile reads and parses a modules YAML document. Module order in
// the file is preserved, which fixes dispatch ordering.
func LoadModulesFile(path string) (*ModulesDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules file: %w", err)
	}
	return ParseModulesDoc(data)
}

// ParseModulesDoc parses the modules YAML document from raw bytes.
func ParseModulesDoc(data []byte) (*ModulesDoc, error) {
	var raw struct {
		Token      string    `yaml:"token"`
		BotModules yaml.Node `yaml:"botModules"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse modules document: %w", err)
	}

	doc := &ModulesDoc{Token: raw.Token}

	if raw.BotModules.Kind == 0 {
		return doc, nil
	}
	if raw.BotModules.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("botModules: expected a mapping, got %s node", nodeKind(raw.BotModules.Kind))
	}

	// A yaml mapping node stores key/value pairs as alternating children,
	// in document order.
	for i := 0; i+1 < len(raw.BotModules.Content); i += 2 {
		key := raw.BotModules.Content[i]
		val := raw.BotModules.Content[i+1]

		var mc ModuleConfig
		if err := val.Decode(&mc); err != nil {
			return nil, fmt.Errorf("module %q: %w", key.Value, err)
		}
		mc.Name = key.Value
		doc.Modules = append(doc.Modules, mc)
	}

	return doc, nil
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}

// chatSet is the set of entity ids a module accepts within one source,
// optionally widened to everything by the wildcard.
type chatSet struct {
	ids map[int64]struct{}
	all bool
}

func (s *chatSet) contains(id int64) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Module is one consumer's compiled rule set plus its endpoint.
type Module struct {
	Name     string
	Endpoint Endpoint

	allowedChats map[Source]*chatSet
	allowedTypes map[Source]map[telegram.UpdateType]struct{}
}

// Matches reports whether an update with the given origin and kind should be
// delivered to this module. Both stages must pass: the origin's entity id (or
// the wildcard) must be allowed for the origin's source, and the kind must be
// allowed for that same source. A source with no entry never matches.
func (m *Module) Matches(origin Origin, kind telegram.UpdateType) bool {
	chats, ok := m.allowedChats[origin.Source]
	if !ok || !chats.contains(origin.FromID) {
		return false
	}
	kinds, ok := m.allowedTypes[origin.Source]
	if !ok {
		return false
	}
	_, ok = kinds[kind]
	return ok
}

// Registry holds every registered module in configuration order. Read-only
// after construction; safe for unsynchronized concurrent reads.
type Registry struct {
	modules []*Module
}

// Modules returns the registered modules in configuration order.
func (r *Registry) Modules() []*Module {
	return r.modules
}

// AllowedTypes returns the union of every module's allowed update kinds,
// sorted for a stable allowed_updates wire parameter.
func (r *Registry) AllowedTypes() []telegram.UpdateType {
	seen := make(map[telegram.UpdateType]struct{})
	for _, m := range r.modules {
		for _, kinds := range m.allowedTypes {
			for k := range kinds {
				seen[k] = struct{}{}
			}
		}
	}

	out := make([]telegram.UpdateType, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildRegistry compiles a modules document into a Registry. Malformed source
// names, update kinds, or chat ids fail construction with a descriptive error;
// nothing is parsed lazily at dispatch time.
func BuildRegistry(doc *ModulesDoc) (*Registry, error) {
	reg := &Registry{}

	for _, mc := range doc.Modules {
		m := &Module{
			Name:         mc.Name,
			Endpoint:     mc.In,
			allowedChats: make(map[Source]*chatSet),
			allowedTypes: make(map[Source]map[telegram.UpdateType]struct{}),
		}

		for key, ids := range mc.AllowedChats {
			sources, err := parseSourceList(key)
			if err != nil {
				return nil, fmt.Errorf("module %q: allowedChats: %w", mc.Name, err)
			}
			for _, src := range sources {
				set, ok := m.allowedChats[src]
				if !ok {
					set = &chatSet{ids: make(map[int64]struct{})}
					m.allowedChats[src] = set
				}
				for _, ref := range ids {
					raw := strings.TrimSpace(string(ref))
					if strings.EqualFold(raw, Wildcard) {
						set.all = true
						continue
					}
					id, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return nil, fmt.Errorf("module %q: allowedChats[%s]: bad chat id %q", mc.Name, src, raw)
					}
					set.ids[id] = struct{}{}
				}
			}
		}

		for key, kinds := range mc.AllowedUpdates {
			sources, err := parseSourceList(key)
			if err != nil {
				return nil, fmt.Errorf("module %q: allowedUpdates: %w", mc.Name, err)
			}
			for _, src := range sources {
				set, ok := m.allowedTypes[src]
				if !ok {
					set = make(map[telegram.UpdateType]struct{})
					m.allowedTypes[src] = set
				}
				for _, name := range kinds {
					t, err := telegram.ParseUpdateType(name)
					if err != nil {
						return nil, fmt.Errorf("module %q: allowedUpdates[%s]: %w", mc.Name, src, err)
					}
					set[t] = struct{}{}
				}
			}
		}

		reg.modules = append(reg.modules, m)
	}

	return reg, nil
}

// parseSourceList splits a comma-delimited source key ("group,super_group")
// into sources. Duplicate keys for the same source union-merge because the
// per-source sets above accumulate rather than overwrite.
func parseSourceList(key string) ([]Source, error) {
	parts := strings.Split(key, ",")
	out := make([]Source, 0, len(parts))
	for _, p := range parts {
		src, err := ParseSource(p)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}
