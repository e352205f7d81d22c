package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JaimeStill/attest/internal/frameworks"
)

// Client is the evaluation backend. One call evaluates one control against
// the prepared document context. Calls may fail transiently.
type Client interface {
	Evaluate(ctx context.Context, req Request) (*Evaluation, error)
}

// Request is a single control evaluation.
type Request struct {
	Instructions string
	Control      frameworks.Control
	Context      string
}

// Prompt renders the control and the document context as the user message.
func (r Request) Prompt() string {
	var b strings.Builder
	b.WriteString("CONTROL\n")
	fmt.Fprintf(&b, "Code: %s\n", r.Control.Code)
	fmt.Fprintf(&b, "Title: %s\n", r.Control.Title)
	if d := strings.TrimSpace(r.Control.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if req := strings.TrimSpace(r.Control.Requirement); req != "" {
		fmt.Fprintf(&b, "Requirement: %s\n", req)
	}
	b.WriteString("\nDOCUMENTS\n")
	b.WriteString(r.Context)
	return b.String()
}

// Evaluation is the backend's answer as decoded from its output. Values are
// validated and normalized by the Evaluator.
type Evaluation struct {
	Status     string               `json:"status"`
	Confidence Score                `json:"confidence"`
	Reasoning  string               `json:"reasoning"`
	Citations  []EvaluationCitation `json:"citations"`
}

// EvaluationCitation is a citation as the backend reported it.
type EvaluationCitation struct {
	DocumentID Ref    `json:"document_id"`
	Locator    Ref    `json:"locator"`
	Text       string `json:"text"`
	Relevance  Score  `json:"relevance"`
}

// Score decodes a JSON number, a numeric string or a percentage string.
// null decodes to zero.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = Score(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	str = strings.TrimSuffix(strings.TrimSpace(str), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("score %q: %w", str, err)
	}
	*s = Score(f)
	return nil
}

// Ref decodes a JSON string or number as a string.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Ref(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	*r = Ref(n.String())
	return nil
}
