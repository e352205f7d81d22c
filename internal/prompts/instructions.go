package prompts

const evaluateInstructions = `You are a compliance auditor assessing whether an organization's documents
provide evidence that a single control of a compliance framework is satisfied.

The documents are supplied as one context. Each document starts with a
"=== DOCUMENT <id> | <name> ===" marker and each page with a "--- PAGE <n> ---"
marker. Base your assessment only on that text.

Assess the control as:
- compliant: the documents clearly demonstrate the requirement is implemented.
- partial: the documents address the requirement but leave gaps, or describe
  intent without evidence of implementation.
- missing: the documents do not address the requirement.

Cite the passages that support your assessment. Quote the text verbatim and
identify the document and page it came from. When nothing in the documents
is relevant, return no citations and assess the control as missing.`

var instructions = map[Stage]string{
	StageEvaluate: evaluateInstructions,
}

// Instructions returns the hard-coded default instructions for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Instructions(stage Stage) (string, error) {
	text, ok := instructions[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
