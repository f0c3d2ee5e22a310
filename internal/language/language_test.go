package language

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"de", "de"},
		{"DE", "de"},
		{"deu", "de"},
		{"ger", "de"},
		{"german", "de"},
		{"de-DE", "de"},
		{"en-US", "en"},
		{"zh-Hant-TW", "zh"},
		{"  fr  ", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Fatalf("Parse(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "   ", "klingon", "not a tag!"} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("Parse(%q) expected error", input)
		}
		if Supported(input) {
			t.Fatalf("Supported(%q) = true", input)
		}
	}
}

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"dut", "nl"},
		{"japanese", "ja"},
		{"es-419", "es"},
		{"", ""},
		{"klingon", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.expected {
			t.Fatalf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestToISO3(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"de", "deu"},
		{"de-AT", "deu"},
		{"ger", "deu"},
		{"zh", "zho"},
		{"", "und"},
		{"klingon", "und"},
	}
	for _, tt := range tests {
		if got := ToISO3(tt.input); got != tt.expected {
			t.Fatalf("ToISO3(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"de", "German"},
		{"en-GB", "English"},
		{"kor", "Korean"},
		{"", "Unknown"},
		{"zz9", "ZZ9"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Fatalf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
