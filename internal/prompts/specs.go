package prompts

const evaluateSpec = `Respond with a JSON object matching this exact structure:

{
  "status": "<compliant|partial|missing>",
  "confidence": <0-100>,
  "reasoning": "<explanation>",
  "citations": [
    {
      "document_id": "<uuid from the document marker>",
      "locator": "page <n>",
      "text": "<verbatim quote>",
      "relevance": <0.0-1.0>
    }
  ]
}

Field constraints:
- status: exactly one of compliant, partial, missing.
- confidence: integer from 0 to 100 expressing certainty in the status.
- reasoning: a short narrative explaining how the cited evidence supports
  the status, and which parts of the requirement are not covered.
- citations: ordered from most to least relevant. Empty when the status is
  missing because no relevant text exists.
- document_id: copied from the enclosing document marker.
- locator: the page marker the quote appears under, written as "page <n>".
- relevance: how directly the quote supports the control, from 0.0 to 1.0.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never invent quotes; every citation must appear in the supplied documents
- Evaluate only the control in the request`

var specs = map[Stage]string{
	StageEvaluate: evaluateSpec,
}

// Spec returns the hard-coded response specification for a stage.
// Specifications define the expected output format and behavioral constraints.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
