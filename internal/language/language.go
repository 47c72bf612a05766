// Package language tags chat input with the language replies should use.
package language

import (
	"strings"
)

// Label names a reply language as it appears in prompts and the UI.
type Label string

const (
	English  Label = "English"
	Spanish  Label = "Spanish"
	French   Label = "French"
	German   Label = "German"
	Hindi    Label = "Hindi"
	Japanese Label = "Japanese"
	Chinese  Label = "Chinese"
	Arabic   Label = "Arabic"
)

// Default is used whenever detection cannot decide.
const Default = English

// Supported lists the selectable languages in UI order.
var Supported = []Label{English, Spanish, French, German, Hindi, Japanese, Chinese, Arabic}

// isoLabels maps the statistical guesser's ISO 639-1 codes to labels.
var isoLabels = map[string]Label{
	"en": English,
	"es": Spanish,
	"fr": French,
	"de": German,
	"hi": Hindi,
}

// Parse resolves a UI selection case-insensitively. It reports false for
// unknown names; an empty name is unknown too.
func Parse(name string) (Label, bool) {
	name = strings.TrimSpace(name)
	for _, l := range Supported {
		if strings.EqualFold(name, string(l)) {
			return l, true
		}
	}
	return "", false
}

// String implements fmt.Stringer.
func (l Label) String() string {
	return string(l)
}
