// Package moderation masks banned vocabulary in message bodies before
// they are stored. Matching runs on a normalized shadow of the text so
// leet speak, casing and inserted punctuation do not defeat the filter,
// while the mask lands on the original characters.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher  *goahocorasick.Machine
	maskRune rune
	log      *slog.Logger
	inert    bool
}

// shadow pairs the normalized runes with the index each one came from in
// the original text, so a match span can be projected back.
type shadow struct {
	runes   []rune
	origIdx []int
}

// NewModerator builds the Aho-Corasick automaton from the normalized
// banned-word list. An empty list yields a moderator that passes
// everything through.
func NewModerator(banned []string, maskRune rune, log *slog.Logger) (Moderator, error) {
	patterns := make([][]rune, 0, len(banned))
	for _, word := range banned {
		if norm := foldRunes([]rune(word)); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}

	if len(patterns) == 0 {
		return Moderator{maskRune: maskRune, log: log, inert: true}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, maskRune: maskRune, log: log}, nil
}

// Mask replaces every banned span with the mask rune. Characters between
// the matched runes (dots, dashes, spaces inside a disguised word) are
// masked too, everything outside a span is untouched.
func (m *Moderator) Mask(original string) string {
	if m.inert {
		return original
	}
	sh := fold(original)
	if len(sh.runes) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(sh.runes, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(sh.origIdx) {
			continue
		}
		for i := sh.origIdx[start]; i <= sh.origIdx[end-1]; i++ {
			origRunes[i] = m.maskRune
		}
	}

	m.log.Debug("masked message body", slog.Int("spans", len(spans)))
	return string(origRunes)
}

func fold(input string) shadow {
	origRunes := []rune(input)
	sh := shadow{
		runes:   make([]rune, 0, len(origRunes)),
		origIdx: make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := unleet(r)
		if skippable(clean) {
			continue
		}
		sh.runes = append(sh.runes, unicode.ToLower(clean))
		sh.origIdx = append(sh.origIdx, i)
	}
	return sh
}

func foldRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := unleet(r)
		if skippable(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// unleet folds the common digit and symbol substitutions back onto the
// letters they imitate.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func skippable(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
