// Package plugins describes the S2E plugins a run can enable and turns a
// plugin selection into an s2e-config.lua file.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

// Option types understood by the catalog.
const (
	TypeBool       = "bool"
	TypeInt        = "int"
	TypeString     = "string"
	TypeStringList = "stringList"
	TypeIntList    = "intList"
	TypeList       = "list"
)

var (
	ErrUnknownType  = errors.New("plugins: unknown option type")
	ErrInvalidValue = errors.New("plugins: invalid option value")
	ErrMissingValue = errors.New("plugins: missing option value")
)

// Option describes one configuration key of a plugin. Options of type list
// hold a keyed set of nested option groups described by Content.
type Option struct {
	Type        string            `yaml:"type" json:"type"`
	Description string            `yaml:"description" json:"description"`
	Content     map[string]Option `yaml:"content,omitempty" json:"content,omitempty"`
}

// Plugin is one catalog entry.
type Plugin struct {
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	ConfigOption map[string]Option `yaml:"configOption,omitempty" json:"configOption,omitempty"`
}

// Catalog is the set of available plugins, read once from a JSON or YAML
// file and re-read only on Reload. It is safe for concurrent use.
type Catalog struct {
	path string

	mu      sync.RWMutex
	plugins []Plugin
	byName  map[string]int
}

// Load reads the catalog at path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file. On error the previous contents are kept.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("plugins: read catalog: %w", err)
	}
	plugins, err := Parse(data)
	if err != nil {
		return err
	}

	byName := make(map[string]int, len(plugins))
	for i, p := range plugins {
		byName[p.Name] = i
	}

	c.mu.Lock()
	c.plugins = plugins
	c.byName = byName
	c.mu.Unlock()
	return nil
}

// Parse decodes a catalog document. JSON catalogs parse as YAML.
func Parse(data []byte) ([]Plugin, error) {
	var plugins []Plugin
	if err := yaml.Unmarshal(data, &plugins); err != nil {
		return nil, fmt.Errorf("plugins: parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if p.Name == "" {
			return nil, fmt.Errorf("plugins: catalog entry without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("plugins: duplicate plugin %q", p.Name)
		}
		seen[p.Name] = true
		if err := validateOptions(p.ConfigOption); err != nil {
			return nil, fmt.Errorf("plugins: %s: %w", p.Name, err)
		}
	}
	return plugins, nil
}

func validateOptions(opts map[string]Option) error {
	for key, o := range opts {
		switch o.Type {
		case TypeBool, TypeInt, TypeString, TypeStringList, TypeIntList:
		case TypeList:
			if err := validateOptions(o.Content); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		default:
			return fmt.Errorf("%w %q for %s", ErrUnknownType, o.Type, key)
		}
	}
	return nil
}

// Plugins returns the catalog entries in file order.
func (c *Catalog) Plugins() []Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Plugin(nil), c.plugins...)
}

// Lookup returns the plugin called name.
func (c *Catalog) Lookup(name string) (Plugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[name]
	if !ok {
		return Plugin{}, false
	}
	return c.plugins[i], true
}

// Selected returns the catalog plugins named in cfg, in catalog order.
// Names the catalog does not know are logged and ignored.
func (c *Catalog) Selected(cfg UserConfig) []Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Plugin
	for _, p := range c.plugins {
		if _, ok := cfg[p.Name]; ok {
			out = append(out, p)
		}
	}
	for name := range cfg {
		if _, ok := c.byName[name]; !ok {
			log.WithField("plugin", name).Warn("not in catalog, ignored")
		}
	}
	return out
}

// UserConfig maps a selected plugin name to the values of its options.
type UserConfig map[string]map[string]any

// LoadUserConfig reads a plugin selection from a JSON or YAML file.
func LoadUserConfig(path string) (UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugins: read selection: %w", err)
	}
	return ParseUserConfig(data)
}

// ParseUserConfig decodes a plugin selection. A plugin listed with no options
// is selected with an empty value set.
func ParseUserConfig(data []byte) (UserConfig, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("plugins: parse selection: %w", err)
	}
	cfg := make(UserConfig, len(raw))
	for name, values := range raw {
		if values == nil {
			values = map[string]any{}
		}
		cfg[name] = values
	}
	return cfg, nil
}
