// Package location resolves user input (place names, GPS fixes and street
// addresses) to a single Taiwan administrative division of the catalog.
package location

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
)

// Input length limits in runes. The shortest division name is two characters (e.g. 中區).
const (
	MinInputRunes = 2
	MaxInputRunes = 6
)

// User-facing validation messages.
const (
	MsgEmptyInput   = "輸入不能為空"
	MsgInputLength  = "🤔 輸入的字數不對喔！請輸入 2 到 6 個字的地名"
	MsgInputCharset = "請輸入中文地名"
)

// variantReplacer unifies the 台/臺 homograph. The catalog and the registry
// store the official 臺 form, so every normalization path goes through here.
var variantReplacer = strings.NewReplacer("台", "臺")

// InputFormatError reports place-name input that the user has to correct.
// Message is ready to be sent back as a chat reply.
type InputFormatError struct {
	Message       string
	OriginalInput string
}

func (e *InputFormatError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, domerrors.ErrInvalidInput) match format errors.
func (e *InputFormatError) Is(target error) bool {
	return target == domerrors.ErrInvalidInput
}

// Normalize trims surrounding whitespace and unifies character variants.
func Normalize(raw string) string {
	return variantReplacer.Replace(strings.TrimSpace(raw))
}

// Validate checks that text looks like a place name and returns its normalized form.
//
// Checks run in order: empty input, rune count within [MinInputRunes, MaxInputRunes],
// then CJK Unified Ideographs only (no Latin letters, digits or punctuation).
func Validate(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", &InputFormatError{Message: MsgEmptyInput, OriginalInput: text}
	}

	n := utf8.RuneCountInString(cleaned)
	if n < MinInputRunes || n > MaxInputRunes {
		return "", &InputFormatError{Message: MsgInputLength, OriginalInput: text}
	}

	for _, r := range cleaned {
		if !isIdeograph(r) {
			return "", &InputFormatError{Message: MsgInputCharset, OriginalInput: text}
		}
	}

	return variantReplacer.Replace(cleaned), nil
}

// isIdeograph reports whether r is in the CJK Unified Ideographs block (U+4E00..U+9FFF).
func isIdeograph(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// normalizeAddress prepares free-text addresses for pattern matching:
// variant unification, full-width to half-width folding and whitespace removal.
func normalizeAddress(address string) string {
	folded := width.Narrow.String(variantReplacer.Replace(address))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}
