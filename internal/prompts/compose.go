package prompts

import "strings"

// Compose joins instructions and a response specification into one system prompt.
func Compose(instructions, spec string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(spec))
	return b.String()
}
