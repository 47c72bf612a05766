package language

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

// Guesser is a statistical language identifier.
type Guesser interface {
	// Guess returns an ISO 639-1 code such as "en".
	Guess(text string) (string, error)
}

// ErrUndetermined is returned by a Guesser that cannot identify the text.
var ErrUndetermined = errors.New("language undetermined")

// Script ranges checked before the statistical guess. Kana and the common
// Kanji block come first so Japanese wins on characters shared with Chinese.
var (
	japaneseRanges = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x30ff, Stride: 1},
		{Lo: 0x4e00, Hi: 0x9faf, Stride: 1},
	}}
	arabicRanges = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06ff, Stride: 1},
	}}
	chineseRanges = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1},
	}}
)

// Detector classifies text into a Label.
type Detector struct {
	guesser Guesser
	logger  *logger.Logger
}

// NewDetector creates a detector. A nil guesser uses whatlanggo.
func NewDetector(guesser Guesser, log *logger.Logger) *Detector {
	if guesser == nil {
		guesser = WhatlangGuesser{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{guesser: guesser, logger: log}
}

// Detect returns the language of text. It never fails: anything the script
// rules and the guesser cannot settle is English.
func (d *Detector) Detect(text string) Label {
	switch {
	case containsAny(text, japaneseRanges):
		return Japanese
	case containsAny(text, arabicRanges):
		return Arabic
	case containsAny(text, chineseRanges):
		return Chinese
	}

	code, err := d.guess(text)
	if err != nil {
		d.logger.Debug("statistical language guess failed", zap.Error(err))
		return Default
	}

	if label, ok := isoLabels[code]; ok {
		return label
	}
	return Default
}

func (d *Detector) guess(text string) (code string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guesser panic: %v", r)
		}
	}()
	return d.guesser.Guess(text)
}

func containsAny(text string, table *unicode.RangeTable) bool {
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}

// WhatlangGuesser guesses with github.com/abadojack/whatlanggo.
type WhatlangGuesser struct{}

// whatlangOptions leaves Hindi as the only Devanagari profile. Short Hindi
// messages otherwise score as Bhojpuri or Maithili, which have no label.
var whatlangOptions = whatlanggo.Options{
	Blacklist: map[whatlanggo.Lang]bool{
		whatlanggo.Bho: true,
		whatlanggo.Mai: true,
		whatlanggo.Mar: true,
		whatlanggo.Nep: true,
	},
}

// Guess implements Guesser.
func (WhatlangGuesser) Guess(text string) (string, error) {
	info := whatlanggo.DetectWithOptions(text, whatlangOptions)
	if info.Lang < 0 {
		return "", ErrUndetermined
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("%w: no ISO 639-1 code for %s", ErrUndetermined, info.Lang.String())
	}
	return code, nil
}
