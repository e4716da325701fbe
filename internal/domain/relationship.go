package domain

import (
	"fmt"
	"sort"
	"strings"
)

// OwnerContext identifies who the call is placed on behalf of.
type OwnerContext struct {
	Name           string `json:"name,omitempty"`
	Company        string `json:"company,omitempty"`
	Role           string `json:"role,omitempty"`
	CallbackNumber string `json:"callbackNumber,omitempty"`
}

// DisplayName renders the owner as "Name from Company" with whatever is present.
func (o OwnerContext) DisplayName() string {
	name := strings.TrimSpace(o.Name)
	company := strings.TrimSpace(o.Company)
	switch {
	case name != "" && company != "":
		return fmt.Sprintf("%s from %s", name, company)
	case name != "":
		return name
	case company != "":
		return company
	default:
		return ""
	}
}

// RelationshipFacts is the sparse set of known facts about the call recipient.
type RelationshipFacts struct {
	EngagementScore  *float64         `json:"engagementScore,omitempty"`
	LastInteraction  string            `json:"lastInteraction,omitempty"`
	OpenItems        []string          `json:"openItems,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	PreferredChannel string            `json:"preferredChannel,omitempty"`
	Timezone         string            `json:"timezone,omitempty"`
	Extensions       map[string]string `json:"extensions,omitempty"`
}

// Fact is one labeled, non-empty relationship fact.
type Fact struct {
	Label string
	Value string
}

// Facts lists the present facts in a fixed order, extension entries last and
// sorted by key so the rendering is deterministic.
func (f *RelationshipFacts) Facts() []Fact {
	if f == nil {
		return nil
	}
	var out []Fact
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			out = append(out, Fact{Label: label, Value: v})
		}
	}
	if f.EngagementScore != nil {
		add("Engagement score", fmt.Sprintf("%g", *f.EngagementScore))
	}
	add("Last interaction", f.LastInteraction)
	var items []string
	for _, item := range f.OpenItems {
		if t := strings.TrimSpace(item); t != "" {
			items = append(items, t)
		}
	}
	add("Open items", strings.Join(items, "; "))
	add("Notes", f.Notes)
	add("Preferred contact channel", f.PreferredChannel)
	add("Timezone", f.Timezone)

	keys := make([]string, 0, len(f.Extensions))
	for k := range f.Extensions {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(humanizeKey(k), f.Extensions[k])
	}
	return out
}

// HasAny reports whether at least one fact would be rendered.
func (f *RelationshipFacts) HasAny() bool {
	return len(f.Facts()) > 0
}

// Validate rejects values that cannot be meaningfully rendered.
func (f *RelationshipFacts) Validate() error {
	if f == nil {
		return nil
	}
	if f.EngagementScore != nil && (*f.EngagementScore < 0 || *f.EngagementScore > 100) {
		return fmt.Errorf("engagementScore must be between 0 and 100, got %g", *f.EngagementScore)
	}
	for k := range f.Extensions {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("extension keys must not be blank")
		}
	}
	return nil
}

func humanizeKey(key string) string {
	key = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(key))
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
