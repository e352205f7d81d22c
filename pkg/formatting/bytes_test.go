package formatting_test

import (
	"testing"

	"github.com/JaimeStill/attest/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"kilobytes", "1KB", 1024, false},
		{"megabytes", "2MB", 2 * 1024 * 1024, false},
		{"lowercase unit", "10mb", 10 * 1024 * 1024, false},
		{"with space", "100 MB", 100 * 1024 * 1024, false},
		{"fractional", "1.5KB", 1536, false},
		{"iec unit", "3MiB", 3 * 1024 * 1024, false},
		{"short unit", "1g", 1024 * 1024 * 1024, false},
		{"bare B", "512 B", 512, false},
		{"overflow", "9000000EB", 0, true},
		{"unit only", "MB", 0, true},
		{"empty string", "", 0, true},
		{"unknown unit", "50XX", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{0, 2, "0 B"},
		{500, 0, "500 B"},
		{2 * 1024 * 1024, 0, "2 MB"},
		{1536 * 1024, 1, "1.5 MB"},
		{-1024, 0, "-1 KB"},
		{1023, 2, "1023 B"},
		{3 * 1024 * 1024 * 1024, 0, "3 GB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
			t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
		}
	}
}
