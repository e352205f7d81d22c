package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/attest/pkg/formatting"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  sample
	}{
		{"direct JSON", `{"name":"test","value":42}`, sample{"test", 42}},
		{"padded JSON", "  {\"name\":\"padded\",\"value\":1}  ", sample{"padded", 1}},
		{"fenced with language", "```json\n{\"name\":\"fenced\",\"value\":7}\n```", sample{"fenced", 7}},
		{"fenced without language", "```\n{\"name\":\"bare\",\"value\":3}\n```", sample{"bare", 3}},
		{"fence in prose", "Here is the result:\n```json\n{\"name\":\"wrapped\",\"value\":5}\n```\nDone.", sample{"wrapped", 5}},
		{"object in prose", "Assessment follows. {\"name\":\"inline\",\"value\":9} Hope this helps.", sample{"inline", 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[sample](tt.input)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	for _, input := range []string{"", "not json at all", "```json\n{broken\n```"} {
		if _, err := formatting.Parse[sample](input); !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("Parse(%q) error = %v, want ErrParseFailed", input, err)
		}
	}
}

func TestParseSlice(t *testing.T) {
	got, err := formatting.Parse[[]int]("values: [1,2,3]")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("got = %v, want [1 2 3]", got)
	}
}
