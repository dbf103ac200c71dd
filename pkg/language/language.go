// Package language provides deterministic per-utterance language detection
// for mixed Hindi-English conversations.
//
// Detection is pure text analysis: it counts Devanagari and Latin script
// characters and scans for romanized Hindi ("Hinglish") loan-words. No I/O,
// no external models. The same input always yields the same tag.
package language

import (
	"strings"
	"unicode"
)

// Tag identifies which language track an utterance belongs to.
// It is a closed enumeration; free-form language strings are normalized
// at this package's boundary and never travel further into the system.
type Tag string

const (
	// English is the primary language and the default for empty or
	// unrecognizable input.
	English Tag = "en"

	// Hindi is the secondary language, written in Devanagari script.
	Hindi Tag = "hi"

	// Mixed marks code-switched utterances (Hinglish or mixed-script).
	Mixed Tag = "mixed"
)

// Auto is the hint value that requests automatic detection.
// It is a hint, not a Tag: Classify never returns it.
const Auto = "auto"

// Detection thresholds, in percent of script characters.
// These are heuristic bands; the evaluation order in Classify is what
// resolves the overlaps between them and must not change.
const (
	hindiDominantPct     = 60
	englishDominantPct   = 70
	hinglishMinLatinPct  = 40
	hinglishMaxHindiPct  = 10
	englishFallbackPct   = 50
	hinglishMinKeywords  = 2
	englishMaxKeywords   = 1
)

// hinglishKeywords are common Hindi words written in Latin script.
// Two or more of these in otherwise-Latin text indicate code-switching.
var hinglishKeywords = []string{
	"namaste", "kaise", "ho", "hai", "haan", "nahi", "kripya", "dhanyavad",
	"madad", "samay", "tarikh", "booking", "pata", "number", "bhai", "didi",
	"ji", "aap", "hum", "mera", "meri", "kya", "kyu", "kyon", "kab", "kahan",
	"kidhar", "chahiye", "karna", "hoga", "krna", "krunga", "krungi",
}

// Classify returns the language tag for the given text.
//
// Empty or whitespace-only input yields English. The decision policy is
// evaluated strictly in order; the first matching rule wins:
//
//  1. Devanagari share >= 60%                                  -> Hindi
//  2. Latin share >= 70% and no Hinglish keywords              -> English
//  3. >= 2 keywords, Latin >= 40%, Devanagari < 10%            -> Mixed
//  4. Latin >= 50%, Devanagari < 10%, <= 1 keyword             -> English
//  5. otherwise                                                -> Mixed
func Classify(text string) Tag {
	text = strings.TrimSpace(text)
	if text == "" {
		return English
	}

	// Shares are computed over every non-whitespace character, so digits
	// and punctuation dilute both scripts equally.
	var hindiChars, latinChars, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case isDevanagari(r):
			hindiChars++
		case unicode.IsLetter(r) && r < 0x80:
			latinChars++
		}
	}

	if total == 0 {
		return English
	}

	hindiPct := hindiChars * 100 / total
	latinPct := latinChars * 100 / total
	keywords := countKeywords(text)

	switch {
	case hindiPct >= hindiDominantPct:
		return Hindi
	case latinPct >= englishDominantPct && keywords == 0:
		return English
	case keywords >= hinglishMinKeywords && latinPct >= hinglishMinLatinPct && hindiPct < hinglishMaxHindiPct:
		return Mixed
	case latinPct >= englishFallbackPct && hindiPct < hinglishMaxHindiPct && keywords <= englishMaxKeywords:
		return English
	default:
		return Mixed
	}
}

// Normalize maps a free-form language string to a Tag.
// Unknown values and the Auto hint fall back to English.
func Normalize(s string) Tag {
	switch Tag(strings.ToLower(strings.TrimSpace(s))) {
	case Hindi:
		return Hindi
	case Mixed:
		return Mixed
	default:
		return English
	}
}

// IsAuto reports whether the hint requests automatic detection.
func IsAuto(hint string) bool {
	return hint == "" || strings.EqualFold(hint, Auto)
}

// countKeywords counts distinct word-boundary Hinglish keyword matches.
func countKeywords(text string) int {
	words := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[f] = true
	}

	hits := 0
	for _, kw := range hinglishKeywords {
		if words[kw] {
			hits++
		}
	}
	return hits
}

func isDevanagari(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}
