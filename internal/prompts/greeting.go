package prompts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/persona"
)

// FirstName extracts a salutation name from a display name, falling back to
// "there" when nothing usable is present.
func FirstName(displayName string) string {
	for _, field := range strings.Fields(displayName) {
		trimmed := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && r != '-' && r != '\''
		})
		if trimmed != "" {
			return trimmed
		}
	}
	return UnknownNameSalutation
}

// GreetingText renders the persona opener addressed to the recipient.
func GreetingText(p persona.Persona, destinationName string, owner domain.OwnerContext) string {
	caller := strings.TrimSpace(owner.Company)
	if caller == "" {
		caller = strings.TrimSpace(owner.Name)
	}
	if caller == "" {
		caller = UnknownOwner
	}
	tmpl := p.GreetingTemplate
	if tmpl == "" {
		tmpl = "Hi %s, this is " + p.Name + " calling from %s."
	}
	return fmt.Sprintf(tmpl, FirstName(destinationName), caller)
}

// GreetingInstruction wraps the greeting so the engine speaks it in its own voice.
func GreetingInstruction(greeting string) string {
	return joinBlocks(
		"Start the call now. Say the following opening line naturally, in your own voice and at a relaxed pace, adapting the wording slightly if it sounds more natural:",
		fmt.Sprintf("%q", greeting),
		"Then stop and wait for the person to respond.",
	)
}
