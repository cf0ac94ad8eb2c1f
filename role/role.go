// Package role is the credit role catalog.
//
// Roles fall into two kinds. Structural roles (Alias, Member Of, Sublabel Of)
// are derived from an entity's own embedded data and need no query.
// Relational roles are everything else and are read from the relation table.
// Callers resolve a role name to its Kind once and branch on the enum.
package role

import (
	_ "embed"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/teranos/discograph/errors"
)

// Role names the builder and entity model refer to directly.
const (
	Alias      = "Alias"
	MemberOf   = "Member Of"
	SublabelOf = "Sublabel Of"

	ReleasedOn = "Released On"
	CompiledOn = "Compiled On"
	Producer   = "Producer"
	Remix      = "Remix"
	DJMix      = "DJ Mix"
	WrittenBy  = "Written-By"
)

// Kind separates roles answered from entity data from roles that need a
// relation query.
type Kind int

const (
	Relational Kind = iota
	Structural
)

func (k Kind) String() string {
	if k == Structural {
		return "structural"
	}
	return "relational"
}

// StructuralRole identifies which embedded entity sections back a structural role.
type StructuralRole int

const (
	NotStructural StructuralRole = iota
	AliasRole
	MemberOfRole
	SublabelOfRole
)

// StructuralOf resolves a role name to its structural variant.
func StructuralOf(name string) StructuralRole {
	switch name {
	case Alias:
		return AliasRole
	case MemberOf:
		return MemberOfRole
	case SublabelOf:
		return SublabelOfRole
	}
	return NotStructural
}

// KindOf reports whether name is structural or relational. It does not check
// that the role is known; use Catalog.Validate for that.
func KindOf(name string) Kind {
	if StructuralOf(name) != NotStructural {
		return Structural
	}
	return Relational
}

// Role is one catalog entry.
type Role struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Subcategory string `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
}

// Kind returns the role's kind.
func (r Role) Kind() Kind { return KindOf(r.Name) }

// Category groups roles for display.
type Category struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type catalogFile struct {
	Categories []struct {
		Name          string   `yaml:"name"`
		Roles         []string `yaml:"roles"`
		Subcategories []struct {
			Name  string   `yaml:"name"`
			Roles []string `yaml:"roles"`
		} `yaml:"subcategories"`
	} `yaml:"categories"`
}

// Catalog is an immutable set of known roles. Safe for concurrent use.
type Catalog struct {
	roles      []Role
	byName     map[string]int
	categories []Category
}

//go:embed roles.yaml
var embeddedRoles []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedRoles)
		if err != nil {
			panic(errors.Wrap(err, "embedded roles.yaml is invalid"))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse role catalog")
	}

	c := &Catalog{byName: make(map[string]int)}
	add := func(name, category, subcategory string) error {
		if name == "" {
			return errors.Newf("empty role name in category %q", category)
		}
		if _, dup := c.byName[name]; dup {
			return errors.Newf("duplicate role %q", name)
		}
		c.byName[name] = len(c.roles)
		c.roles = append(c.roles, Role{Name: name, Category: category, Subcategory: subcategory})
		return nil
	}

	for _, cat := range file.Categories {
		if cat.Name == "" {
			return nil, errors.New("role category without a name")
		}
		group := Category{Name: cat.Name}
		for _, name := range cat.Roles {
			if err := add(name, cat.Name, ""); err != nil {
				return nil, err
			}
			group.Roles = append(group.Roles, name)
		}
		for _, sub := range cat.Subcategories {
			for _, name := range sub.Roles {
				if err := add(name, cat.Name, sub.Name); err != nil {
					return nil, err
				}
				group.Roles = append(group.Roles, name)
			}
		}
		sort.Strings(group.Roles)
		c.categories = append(c.categories, group)
	}

	for _, structural := range []string{Alias, MemberOf, SublabelOf} {
		if _, ok := c.byName[structural]; !ok {
			return nil, errors.Newf("role catalog is missing structural role %q", structural)
		}
	}
	return c, nil
}

// Lookup returns the catalog entry for name.
func (c *Catalog) Lookup(name string) (Role, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Role{}, false
	}
	return c.roles[i], true
}

// IsKnown reports whether name is in the catalog.
func (c *Catalog) IsKnown(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Len is the number of roles.
func (c *Catalog) Len() int { return len(c.roles) }

// Roles returns every entry in catalog order.
func (c *Catalog) Roles() []Role {
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Names returns every role name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.roles))
	for i, r := range c.roles {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

// Categories returns roles grouped by category in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Roles: append([]string(nil), cat.Roles...)}
	}
	return out
}

// Validate fails with an invalid-role-filter error on the first unknown name.
func (c *Catalog) Validate(names []string) error {
	for _, name := range names {
		if !c.IsKnown(name) {
			return errors.NewInvalidRoleFilterError(name)
		}
	}
	return nil
}

// Partition splits names into structural and relational roles, preserving
// input order and dropping duplicates.
func (c *Catalog) Partition(names []string) (structural, relational []string, err error) {
	if err := c.Validate(names); err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if KindOf(name) == Structural {
			structural = append(structural, name)
		} else {
			relational = append(relational, name)
		}
	}
	return structural, relational, nil
}

// HasRelational reports whether any of names needs a relation query.
func HasRelational(names []string) bool {
	for _, name := range names {
		if KindOf(name) == Relational {
			return true
		}
	}
	return false
}
