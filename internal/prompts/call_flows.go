package prompts

import (
	"fmt"
	"strings"
)

type scriptContext struct {
	Name           string // prose name, never blank
	FirstName      string // never blank
	Owner          string
	Purpose        string
	ownerRole      string
	callbackNumber string
}

func newScriptContext(facts CallFacts) scriptContext {
	name := strings.TrimSpace(facts.DestinationName)
	if name == "" {
		name = UnknownNameProse
	}
	owner := facts.Owner.DisplayName()
	if owner == "" {
		owner = UnknownOwner
	}
	firstName := UnknownNameProse
	if name != UnknownNameProse {
		firstName = FirstName(name)
	}
	purpose := strings.TrimSpace(facts.Purpose)
	if purpose == "" {
		purpose = UnknownPurpose
	}
	return scriptContext{
		Name:           name,
		FirstName:      firstName,
		Owner:          owner,
		Purpose:        purpose,
		ownerRole:      strings.TrimSpace(facts.Owner.Role),
		callbackNumber: strings.TrimSpace(facts.Owner.CallbackNumber),
	}
}

type callFlowFunc func(sc scriptContext) []string

var callFlows = map[string]callFlowFunc{
	"assistant": func(sc scriptContext) []string {
		return []string{
			fmt.Sprintf("Confirm you're speaking with %s.", sc.Name),
			fmt.Sprintf("Explain you're calling for %s about %s.", sc.Owner, sc.Purpose),
			"Listen to their answer and capture any details or decisions with record_note.",
			fmt.Sprintf("Agree on a next step and offer to text a short summary from %s.", sc.Owner),
			"Thank them and end the call warmly.",
		}
	},
	"support": func(sc scriptContext) []string {
		return []string{
			fmt.Sprintf("Confirm you're speaking with %s and that now is a good time.", sc.Name),
			fmt.Sprintf("Say you're following up on %s on behalf of %s.", sc.Purpose, sc.Owner),
			"Ask whether the issue is resolved and what, if anything, is still outstanding.",
			"Summarize what you heard back in one sentence and record it with record_note.",
			"If anything is still open, schedule_follow_up at a time that works for them.",
			fmt.Sprintf("Thank %s for their patience and close the call.", sc.FirstName),
		}
	},
	"sales": func(sc scriptContext) []string {
		return []string{
			fmt.Sprintf("Open with a friendly line to %s and mention you're with %s.", sc.FirstName, sc.Owner),
			fmt.Sprintf("Bring up the reason for calling: %s.", sc.Purpose),
			"Ask one or two open questions about their current priorities.",
			"Connect their answer to how we can help, in one or two sentences.",
			"Propose a concrete next step (demo or follow-up call) and schedule it with schedule_follow_up.",
			"Offer to text a confirmation with send_text_message, then wrap up.",
		}
	},
	"recruiter": func(sc scriptContext) []string {
		return []string{
			fmt.Sprintf("Confirm you're speaking with %s.", sc.Name),
			fmt.Sprintf("Explain you're reaching out for %s regarding %s.", sc.Owner, sc.Purpose),
			"Check their current interest and availability.",
			"Answer their questions briefly; record anything important with record_note.",
			"If they're interested, schedule_follow_up for the next conversation.",
			fmt.Sprintf("Thank %s and let them know what happens next.", sc.FirstName),
		}
	},
	"reminder": func(sc scriptContext) []string {
		return []string{
			fmt.Sprintf("Confirm you're speaking with %s.", sc.Name),
			fmt.Sprintf("Remind them of %s with %s.", sc.Purpose, sc.Owner),
			"Ask them to confirm they can make it.",
			"If they can't, collect two alternative times and schedule_follow_up.",
			"Offer to text the confirmed details with send_text_message and say goodbye.",
		}
	},
}

func callFlow(personaID string, sc scriptContext) []string {
	if fn, ok := callFlows[strings.ToLower(strings.TrimSpace(personaID))]; ok {
		return fn(sc)
	}
	return []string{
		fmt.Sprintf("Confirm you're speaking with %s.", sc.Name),
		fmt.Sprintf("Explain you're calling on behalf of %s about %s.", sc.Owner, sc.Purpose),
		"Listen, answer briefly and agree a next step.",
		"Thank them and end the call.",
	}
}
