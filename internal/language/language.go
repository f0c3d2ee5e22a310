package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string
	code3   string
	alt3    string // bibliographic variant ("ger" vs "deu")
	display string
	word    string
}

var languages = []entry{
	{"en", "eng", "", "English", "english"},
	{"de", "deu", "ger", "German", "german"},
	{"es", "spa", "", "Spanish", "spanish"},
	{"fr", "fra", "fre", "French", "french"},
	{"it", "ita", "", "Italian", "italian"},
	{"pt", "por", "", "Portuguese", "portuguese"},
	{"nl", "nld", "dut", "Dutch", "dutch"},
	{"pl", "pol", "", "Polish", "polish"},
	{"sv", "swe", "", "Swedish", "swedish"},
	{"da", "dan", "", "Danish", "danish"},
	{"no", "nor", "", "Norwegian", "norwegian"},
	{"fi", "fin", "", "Finnish", "finnish"},
	{"ru", "rus", "", "Russian", "russian"},
	{"ja", "jpn", "", "Japanese", "japanese"},
	{"ko", "kor", "", "Korean", "korean"},
	{"zh", "zho", "chi", "Chinese", "chinese"},
	{"ar", "ara", "", "Arabic", "arabic"},
	{"hi", "hin", "", "Hindi", "hindi"},
	{"tr", "tur", "", "Turkish", "turkish"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		m[e.code3] = e
		m[e.word] = e
		if e.alt3 != "" {
			m[e.alt3] = e
		}
	}
	return m
}()

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	return index[code]
}

// Parse reduces a language code, name, or BCP-47 tag to its ISO 639-1 base.
// Unknown or malformed input returns an error.
func Parse(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("language code is empty")
	}
	if e := lookup(trimmed); e != nil {
		return e.code2, nil
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", code, err)
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", fmt.Errorf("language %q has no base language", code)
	}
	if e := lookup(base.String()); e != nil {
		return e.code2, nil
	}
	if iso3 := base.ISO3(); iso3 != "" {
		if e := lookup(iso3); e != nil {
			return e.code2, nil
		}
	}
	return "", fmt.Errorf("language %q is not supported", code)
}

// Supported reports whether Parse accepts code.
func Supported(code string) bool {
	_, err := Parse(code)
	return err == nil
}

// ToISO2 converts any recognized language code to ISO 639-1.
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	iso2, err := Parse(code)
	if err != nil {
		return ""
	}
	return iso2
}

// ToISO3 converts any recognized language code to ISO 639-2.
// Returns "und" for unrecognized input.
func ToISO3(code string) string {
	iso2, err := Parse(code)
	if err != nil {
		return "und"
	}
	return lookup(iso2).code3
}

// DisplayName returns a human-readable English name for code.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if iso2, err := Parse(code); err == nil {
		return lookup(iso2).display
	}
	if tag, err := language.Parse(strings.TrimSpace(code)); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
