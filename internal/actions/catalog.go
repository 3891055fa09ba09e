package actions

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// catalogFile is the on-disk layout of a catalog in every format.
type catalogFile struct {
	Actions []Def `yaml:"actions" json:"actions" toml:"actions"`
}

// Catalog is an ordered, validated set of action definitions.
type Catalog struct {
	defs    []Def
	byID    map[string]int
	aliases map[string]int
}

var defaults = sync.OnceValues(func() (*Catalog, error) {
	defs, err := Decode(defaultsYAML, "yaml")
	if err != nil {
		return nil, fmt.Errorf("built-in actions: %w", err)
	}
	return NewCatalog(defs)
})

// Defaults returns the built-in catalog.
func Defaults() (*Catalog, error) {
	return defaults()
}

// NewCatalog validates defs and indexes them by id and alias.
func NewCatalog(defs []Def) (*Catalog, error) {
	c := &Catalog{
		defs:    make([]Def, 0, len(defs)),
		byID:    make(map[string]int, len(defs)),
		aliases: map[string]int{},
	}
	for _, d := range defs {
		d.normalize()
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("action %q: %w", d.ID, err)
		}
		if strings.ContainsAny(d.ID, " \t\n") {
			return nil, fmt.Errorf("action id %q contains whitespace", d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate action id %q", d.ID)
		}
		if _, err := Parse(d.Source()); err != nil {
			return nil, fmt.Errorf("action %q: %w", d.ID, err)
		}
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	for i, d := range c.defs {
		for _, alias := range d.Aliases {
			if _, ok := c.byID[alias]; ok {
				return nil, fmt.Errorf("alias %q of action %q collides with an action id", alias, d.ID)
			}
			if j, ok := c.aliases[alias]; ok && j != i {
				return nil, fmt.Errorf("alias %q is used by %q and %q", alias, c.defs[j].ID, d.ID)
			}
			c.aliases[alias] = i
		}
	}
	return c, nil
}

// Merge returns a catalog with overrides applied. An override replaces the
// definition with the same id in place; new ids are appended.
func (c *Catalog) Merge(overrides []Def) (*Catalog, error) {
	defs := c.Defs()
	for _, o := range overrides {
		id := strings.TrimSpace(o.ID)
		if i, ok := c.byID[id]; ok {
			defs[i] = o
			continue
		}
		defs = append(defs, o)
	}
	return NewCatalog(defs)
}

// Defs returns a copy of the definitions in catalog order.
func (c *Catalog) Defs() []Def {
	out := make([]Def, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) ForScope(s Scope) []Def {
	var out []Def
	for _, d := range c.defs {
		if d.Scope == s {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) Lookup(id string) (Def, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Def{}, false
	}
	return c.defs[i], true
}

func (c *Catalog) Len() int { return len(c.defs) }

// Decode parses catalog data. format is yaml, toml or json.
func Decode(data []byte, format string) ([]Def, error) {
	var f catalogFile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml actions: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("decode toml actions: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode json actions: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported actions format %q", format)
	}
	return f.Actions, nil
}

// LoadFile reads an override catalog, choosing the decoder by extension.
func LoadFile(path string) ([]Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actions file: %w", err)
	}
	defs, err := Decode(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}
