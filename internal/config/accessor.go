package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// tree is the generic form of a Config, keyed by json tag names.
type tree map[string]any

func toTree(cfg *Config) (tree, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var t tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// lookup walks a dotted path through nested objects.
func (t tree) lookup(path string) (any, bool) {
	var node any = map[string]any(t)
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return node, true
}

// assign stores value at path, creating intermediate objects for omitted
// sections (an empty provider entry, for instance).
func (t tree) assign(path string, value any) error {
	keys := strings.Split(path, ".")
	obj := map[string]any(t)
	for i, key := range keys[:len(keys)-1] {
		switch next := obj[key].(type) {
		case map[string]any:
			obj = next
		case nil:
			child := map[string]any{}
			obj[key] = child
			obj = child
		default:
			return fmt.Errorf("%s is a %T, not a section", strings.Join(keys[:i+1], "."), next)
		}
	}
	obj[keys[len(keys)-1]] = value
	return nil
}

// decode rebuilds a Config from t. Strings are coerced into numeric and
// boolean fields; keys that match no field are rejected.
func (t tree) decode() (*Config, error) {
	var out Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(t)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByPath returns the value at a dotted json path such as
// "capabilities.region".
func GetByPath(cfg *Config, path string) (any, error) {
	t, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := t.lookup(path)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", path)
	}
	return v, nil
}

// SetByPath sets the value at a dotted json path. String values are
// converted to the target field's type.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	t, err := toTree(cfg)
	if err != nil {
		return err
	}
	if err := t.assign(path, value); err != nil {
		return err
	}
	next, err := t.decode()
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	*cfg = *next
	return nil
}

// Sanitize returns a deep copy of cfg with credentials masked.
func Sanitize(cfg *Config) *Config {
	t, err := toTree(cfg)
	if err != nil {
		return cfg
	}
	out, err := t.decode()
	if err != nil {
		return cfg
	}
	for name, p := range out.LLM.Providers {
		p.APIKey = maskSecret(p.APIKey)
		out.LLM.Providers[name] = p
	}
	if out.Memory.Redis.Password != "" {
		out.Memory.Redis.Password = "***"
	}
	return out
}

// maskSecret keeps a four character prefix and suffix of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths flattens cfg into dotted leaf paths and their values.
func ListPaths(cfg *Config) map[string]any {
	t, err := toTree(cfg)
	if err != nil {
		return nil
	}
	leaves := make(map[string]any)
	var walk func(prefix string, obj map[string]any)
	walk = func(prefix string, obj map[string]any) {
		for k, v := range obj {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			leaves[k] = v
		}
	}
	walk("", t)
	return leaves
}

// SortedPaths returns the keys of ListPaths in lexical order.
func SortedPaths(cfg *Config) []string {
	leaves := ListPaths(cfg)
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
