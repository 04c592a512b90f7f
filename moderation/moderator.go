package moderation

import (
	"bkalan/errors"
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator censors forbidden words in chat messages before they are stored
// and broadcast. Matching ignores case, punctuation and common leet speak.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// Sanitized is the moderated form of one message body.
type Sanitized struct {
	Content string
	Words   []string
	Lang    string
}

func (s Sanitized) Censored() bool {
	return len(s.Words) > 0
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton from the normalized
// dictionary. Entries made only of noise are skipped, an empty dictionary
// yields a moderator that never censors.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	var patterns [][]rune
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(word)); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	moderator := &Moderator{censoredChar: censoredChar, log: log}
	if len(patterns) == 0 {
		log.Debug(errors.ErrEmptyWords.Error())
		return moderator, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	moderator.matcher = m
	return moderator, nil
}

// Sanitize censors content and tags it with its detected language (ISO 639-1,
// empty when unreliable).
func (m *Moderator) Sanitize(content string) Sanitized {
	censored, words := m.Censor(content)
	sanitized := Sanitized{Content: censored, Words: words}
	if info := whatlanggo.Detect(content); info.IsReliable() {
		sanitized.Lang = info.Lang.Iso6391()
	}
	if sanitized.Censored() {
		m.log.Debug("Message censored", "words", len(words), "lang", sanitized.Lang)
	}
	return sanitized
}

// Censor replaces every matched word with the censor character while keeping
// the original spacing and punctuation around it.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.matcher == nil {
		return original, nil
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}
	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	return string(origRunes), words
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	return normalize(string(input)).normalized
}

// simplifyRune maps common leet speak characters back to letters.
func simplifyRune(r rune) rune {
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

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
