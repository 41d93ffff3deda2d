package device

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Catalog is an ordered set of named profiles.
type Catalog struct {
	order    []string
	profiles map[string]*Profile
}

type catalogFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// ParseCatalog decodes a YAML profiles document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	c := &Catalog{profiles: make(map[string]*Profile)}
	for _, p := range doc.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("parse profiles: profile %q has no id", p.Name)
		}
		if len(p.Controllers) > MaxControllers {
			return nil, fmt.Errorf("parse profiles: %s declares %d controllers, max %d", p.ID, len(p.Controllers), MaxControllers)
		}
		c.add(p)
	}
	return c, nil
}

// Builtin returns the profiles shipped with the binary.
func Builtin() *Catalog {
	c, err := ParseCatalog(builtinProfiles)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile merges the profiles in path into c, replacing same-id entries.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	other, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, id := range other.order {
		c.add(other.profiles[id])
	}
	return nil
}

func (c *Catalog) add(p *Profile) {
	if _, exists := c.profiles[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.profiles[p.ID] = p
}

// Lookup returns a copy of the profile with the given id.
func (c *Catalog) Lookup(id string) (*Profile, bool) {
	p, ok := c.profiles[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// IDs lists profile ids in declaration order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}
