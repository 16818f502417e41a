package narrate

import (
	"github.com/jstrand/tally/internal/allocate"
)

const (
	enrichSystemPrompt = "You write concise professional summaries of software work. " +
		"Output only the numbered sentences, nothing else."

	timesheetSystemPrompt = "You write accurate, professional timesheet entries from work activity evidence. " +
		"Factual, past tense, no embellishment. Output only the requested lines, nothing else."
)

// policyRules phrases the filler instruction for each recognized
// inference policy.
var policyRules = map[string]string{
	allocate.PolicyAdjacentContinuation: "For dates marked as having no recorded activity, " +
		"describe a plausible continuation of the neighboring days' work, consistent with the draft.",
	allocate.PolicyGenericPlaceholder: "For dates marked as having no recorded activity, " +
		"write a generic professional entry without referencing other days' work.",
}

// PolicyRule returns the prompt rule for a policy, defaulting to
// adjacent-task continuation for anything unrecognized.
func PolicyRule(policy string) string {
	if rule, ok := policyRules[policy]; ok {
		return rule
	}
	return policyRules[allocate.PolicyAdjacentContinuation]
}
