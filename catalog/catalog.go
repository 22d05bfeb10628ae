// Package catalog provides keyword search over the full tool registry.
//
// The index is built once at startup and always searches every tool
// regardless of the active profile. That is what makes it useful: a caller
// under the compact profile can discover tools hidden from the advertised
// surface and still dispatch them by name. The active profile only annotates
// each match with whether it is part of the advertised surface.
//
// Scoring is deliberately simple and deterministic: the number of query
// tokens present in a tool's token set, ties broken by canonical-name lexical
// order. Identical queries always return identical rankings.
package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/registry"
)

// Match is one search hit.
type Match struct {
	// CanonicalName identifies the tool.
	CanonicalName string `json:"canonicalName"`

	// Aliases are the tool's alternate names.
	Aliases []string `json:"aliases,omitempty"`

	// Description is the tool's advertised summary.
	Description string `json:"description"`

	// Backend is the tool's bound channel kind.
	Backend channel.Kind `json:"backend"`

	// Score counts query tokens present in the tool's token set.
	Score int `json:"score"`

	// VisibleInCurrentProfile reports whether the tool is part of the
	// advertised surface of the profile passed to Search: "usable now"
	// versus "usable but hidden".
	VisibleInCurrentProfile bool `json:"visibleInCurrentProfile"`
}

type entry struct {
	def    *registry.Definition
	tokens map[string]struct{}
}

// Index is the keyword index over the full registry.
type Index struct {
	entries []entry
}

// New builds the index from every tool in the registry: canonical name,
// aliases, description, and keywords are tokenized into a case-folded token
// set per tool.
func New(reg *registry.Registry) *Index {
	idx := &Index{}
	for _, def := range reg.All() {
		tokens := make(map[string]struct{})
		idx.addTokens(tokens, def.Name)
		for _, alias := range allAliases(def) {
			idx.addTokens(tokens, alias)
		}
		idx.addTokens(tokens, def.Description)
		for _, kw := range def.Keywords {
			idx.addTokens(tokens, kw)
		}
		idx.entries = append(idx.entries, entry{def: def, tokens: tokens})
	}
	return idx
}

// Search returns tools matching the query, best score first, canonical-name
// order on ties. Tools matching no query token are omitted.
func (i *Index) Search(query string, profile registry.Profile) []Match {
	queryTokens := i.tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	matches := make([]Match, 0, 8)
	for _, e := range i.entries {
		score := 0
		for _, tok := range queryTokens {
			if _, ok := e.tokens[tok]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}
		matches = append(matches, Match{
			CanonicalName:           e.def.Name,
			Aliases:                 allAliases(e.def),
			Description:             e.def.Description,
			Backend:                 e.def.Backend,
			Score:                   score,
			VisibleInCurrentProfile: e.def.Visibility.In(profile),
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].CanonicalName < matches[b].CanonicalName
	})
	return matches
}

// Suggest returns the canonical name of the best match for a failed lookup,
// or empty when nothing matches.
func (i *Index) Suggest(name string) string {
	matches := i.Search(name, registry.ProfileFull)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].CanonicalName
}

// tokenize splits text on non-alphanumeric boundaries and case-folds each
// token, deduplicating while preserving order.
func (i *Index) tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	// A cases.Caser is stateful; use a fresh one per call so Search stays
	// safe for concurrent use.
	folder := cases.Fold()
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := folder.String(f)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func (i *Index) addTokens(set map[string]struct{}, text string) {
	for _, tok := range i.tokenize(text) {
		set[tok] = struct{}{}
	}
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r > 127:
		// Non-ASCII letters stay inside tokens; folding handles case.
		return true
	default:
		return false
	}
}

// allAliases returns every name resolving to def besides the canonical one:
// plain aliases plus the profile-specific advertised names.
func allAliases(def *registry.Definition) []string {
	out := append([]string(nil), def.Aliases...)
	if def.CompactAlias != "" {
		out = append(out, def.CompactAlias)
	}
	if def.LegacyAlias != "" {
		out = append(out, def.LegacyAlias)
	}
	return out
}
