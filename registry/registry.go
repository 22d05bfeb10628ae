// Package registry holds the static table of tool definitions.
//
// The registry is read-only after construction. Each tool has one canonical
// name, any number of aliases, a per-profile visibility flag set, and exactly
// one backend binding. Lookup is exact-string and case-sensitive: canonical
// names first, aliases second. Fuzzy matching belongs to the catalog, never
// to the execution path.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// Registry errors.
var (
	// ErrUnknownTool is returned when neither a canonical name nor an alias
	// matches.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateName is returned at construction for a repeated canonical
	// name.
	ErrDuplicateName = errors.New("duplicate canonical name")

	// ErrDuplicateAlias is returned at construction when an alias collides
	// with another alias or a canonical name anywhere in the registry.
	ErrDuplicateAlias = errors.New("duplicate alias")
)

// Profile is the enumerated exposure profile selected at startup. It is
// immutable for the process lifetime and controls which names are advertised,
// not which are dispatchable.
type Profile string

// The enumerated profile set.
const (
	ProfileCompact Profile = "compact"
	ProfileFull    Profile = "full"
	ProfileLegacy  Profile = "legacy"
)

// ParseProfile validates a profile string.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileCompact, ProfileFull, ProfileLegacy:
		return Profile(s), nil
	default:
		return "", fmt.Errorf("unknown profile %q (want compact, full, or legacy)", s)
	}
}

// Visibility flags a tool's membership in each advertised surface.
type Visibility struct {
	Compact bool
	Full    bool
	Legacy  bool
}

// In reports whether the tool is advertised under p.
func (v Visibility) In(p Profile) bool {
	switch p {
	case ProfileCompact:
		return v.Compact
	case ProfileLegacy:
		return v.Legacy
	default:
		return v.Full
	}
}

// Definition describes one tool: its names, advertised surfaces, backend
// binding, schema, and search keywords.
type Definition struct {
	// Name is the canonical name, globally unique.
	Name string

	// Description is the human-readable summary advertised to callers.
	Description string

	// Aliases are alternate names resolving to this tool. Unique across the
	// whole registry.
	Aliases []string

	// CompactAlias is the name advertised under the compact profile. Empty
	// means the canonical name is used.
	CompactAlias string

	// LegacyAlias is the name advertised under the legacy profile. Empty
	// means the canonical name is used.
	LegacyAlias string

	// Visibility selects the advertised surfaces.
	Visibility Visibility

	// Backend is the single channel kind this tool dispatches to.
	Backend channel.Kind

	// Method is the backend-level operation name.
	Method string

	// InputSchema is the JSON Schema for call arguments.
	InputSchema map[string]any

	// Keywords feed the catalog index alongside the names and description.
	Keywords []string

	// Bulk marks multi-item operations whose results carry a per-item status
	// list rather than an all-or-nothing payload.
	Bulk bool
}

// AdvertisedName returns the name this tool is listed under for p.
func (d *Definition) AdvertisedName(p Profile) string {
	switch p {
	case ProfileCompact:
		if d.CompactAlias != "" {
			return d.CompactAlias
		}
	case ProfileLegacy:
		if d.LegacyAlias != "" {
			return d.LegacyAlias
		}
	}
	return d.Name
}

// Registry is the read-only tool table.
type Registry struct {
	defs    []*Definition
	byName  map[string]*Definition
	byAlias map[string]*Definition
}

// New builds a registry, enforcing global name and alias uniqueness.
func New(defs []Definition) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Definition, len(defs)),
		byAlias: make(map[string]*Definition),
	}
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, errors.New("tool with empty canonical name")
		}
		if d.Backend == "" {
			return nil, fmt.Errorf("tool %s: backend kind is required", d.Name)
		}
		if d.Method == "" {
			d.Method = d.Name
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
		if _, exists := r.byAlias[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s collides with a canonical name", ErrDuplicateAlias, d.Name)
		}
		r.byName[d.Name] = d

		// Profile-specific advertised names resolve like any other alias.
		aliases := make([]string, 0, len(d.Aliases)+2)
		aliases = append(aliases, d.Aliases...)
		if d.CompactAlias != "" {
			aliases = append(aliases, d.CompactAlias)
		}
		if d.LegacyAlias != "" {
			aliases = append(aliases, d.LegacyAlias)
		}
		for _, alias := range aliases {
			if alias == d.Name {
				continue
			}
			if _, exists := r.byAlias[alias]; exists && r.byAlias[alias] == d {
				continue
			}
			if _, exists := r.byName[alias]; exists {
				return nil, fmt.Errorf("%w: %s collides with a canonical name", ErrDuplicateAlias, alias)
			}
			if _, exists := r.byAlias[alias]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, alias)
			}
			r.byAlias[alias] = d
		}
		r.defs = append(r.defs, d)
	}

	sort.Slice(r.defs, func(i, j int) bool { return r.defs[i].Name < r.defs[j].Name })
	return r, nil
}

// Lookup resolves a name to its definition: canonical match first, then
// alias match, case-sensitive, exact-string only.
func (r *Registry) Lookup(name string) (*Definition, error) {
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	if d, ok := r.byAlias[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// All returns every definition in canonical-name order.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Advertised returns the definitions visible under p, in canonical-name
// order.
func (r *Registry) Advertised(p Profile) []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if d.Visibility.In(p) {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of tools.
func (r *Registry) Len() int { return len(r.defs) }
