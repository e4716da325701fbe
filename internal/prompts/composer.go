package prompts

import (
	"fmt"
	"strings"

	"github.com/ClareAI/astra-outbound-bridge/internal/domain"
	"github.com/ClareAI/astra-outbound-bridge/internal/persona"
)

// CallFacts are the call-specific inputs to instruction composition.
type CallFacts struct {
	DestinationNumber string
	DestinationName   string
	Purpose           string
	Owner             domain.OwnerContext
	Relationship      *domain.RelationshipFacts
}

// Compose builds the full session instruction text for one call. It is
// deterministic and performs no I/O.
func Compose(p persona.Persona, facts CallFacts) string {
	sc := newScriptContext(facts)

	return joinBlocks(
		personaHeader(p),
		p.BaseInstructions,
		fmt.Sprintf(PromptPhoneCallMode, MaxWordsPerReply),
		ownerBlock(sc),
		destinationBlock(facts, sc),
		relationshipBlock(facts.Relationship),
		callFlowBlock(p.ID, sc),
		PromptGreetingRepetitionPrevention,
		PromptToolNarration,
	)
}

func personaHeader(p persona.Persona) string {
	return fmt.Sprintf("# PERSONA\nYou are %s, %s.", p.Name, p.Description)
}

func ownerBlock(sc scriptContext) string {
	var b strings.Builder
	b.WriteString("# ON BEHALF OF\n")
	fmt.Fprintf(&b, "You are calling on behalf of %s.", sc.Owner)
	if sc.ownerRole != "" {
		fmt.Fprintf(&b, " Their role: %s.", sc.ownerRole)
	}
	if sc.callbackNumber != "" {
		fmt.Fprintf(&b, " If asked, they can be reached at %s.", sc.callbackNumber)
	}
	return b.String()
}

func destinationBlock(facts CallFacts, sc scriptContext) string {
	var b strings.Builder
	b.WriteString("# WHO YOU ARE CALLING\n")
	fmt.Fprintf(&b, "- Name: %s\n", sc.Name)
	if n := strings.TrimSpace(facts.DestinationNumber); n != "" {
		fmt.Fprintf(&b, "- Phone number: %s\n", n)
	}
	fmt.Fprintf(&b, "- Purpose of the call: %s", sc.Purpose)
	return b.String()
}

// relationshipBlock returns "" when no fact is present so joinBlocks drops it.
func relationshipBlock(rel *domain.RelationshipFacts) string {
	facts := rel.Facts()
	if len(facts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(facts)+2)
	lines = append(lines, "# WHAT WE ALREADY KNOW")
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- %s: %s", f.Label, f.Value))
	}
	lines = append(lines, "Use this context naturally. Don't recite it back unprompted.")
	return strings.Join(lines, "\n")
}

func callFlowBlock(personaID string, sc scriptContext) string {
	steps := callFlow(personaID, sc)
	lines := make([]string, 0, len(steps)+1)
	lines = append(lines, "# CALL FLOW")
	for i, step := range steps {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, step))
	}
	return strings.Join(lines, "\n")
}

func joinBlocks(blocks ...string) string {
	var validBlocks []string
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			validBlocks = append(validBlocks, trimmed)
		}
	}
	return strings.Join(validBlocks, "\n\n")
}
