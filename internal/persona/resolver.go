// Package persona holds the static catalog of AI calling personas.
package persona

import (
	"sort"
	"strings"
)

// DefaultPersonaID is returned for unknown or empty persona ids.
const DefaultPersonaID = "assistant"

// Persona is an immutable AI calling personality.
type Persona struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	VoiceID          string   `json:"voiceId"`
	Description      string   `json:"description"`
	BaseInstructions string   `json:"-"`
	TriggerPhrases   []string `json:"triggerPhrases"`
	// GreetingTemplate takes the recipient first name and the caller identity.
	GreetingTemplate string `json:"-"`
}

// Resolver looks personas up in a static registry.
type Resolver struct {
	personas  map[string]Persona
	defaultID string
}

// NewResolver builds a resolver over the built-in catalog.
func NewResolver() *Resolver {
	return NewResolverWith(builtinPersonas(), DefaultPersonaID)
}

// NewResolverWith builds a resolver over a custom catalog. defaultID must be present.
func NewResolverWith(personas []Persona, defaultID string) *Resolver {
	m := make(map[string]Persona, len(personas))
	for _, p := range personas {
		m[normalizeID(p.ID)] = clonePersona(p)
	}
	return &Resolver{personas: m, defaultID: normalizeID(defaultID)}
}

// Resolve never fails: unknown ids map to the default persona.
func (r *Resolver) Resolve(personaID string) Persona {
	if p, ok := r.personas[normalizeID(personaID)]; ok {
		return clonePersona(p)
	}
	return clonePersona(r.personas[r.defaultID])
}

// Known reports whether personaID is in the catalog.
func (r *Resolver) Known(personaID string) bool {
	_, ok := r.personas[normalizeID(personaID)]
	return ok
}

// List returns all personas sorted by id.
func (r *Resolver) List() []Persona {
	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, clonePersona(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func clonePersona(p Persona) Persona {
	p.TriggerPhrases = append([]string(nil), p.TriggerPhrases...)
	return p
}
