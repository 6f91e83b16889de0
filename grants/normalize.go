// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// minShortNameLen is the exclusive lower bound, in runes, for an extracted
// short name to be accepted.
const minShortNameLen = 5

// normalizationRule extracts the text following the first trigger word.
type normalizationRule struct {
	name     string
	triggers []string
	// nested, when set, re-extracts the text after this word if the
	// extraction contains it.
	nested string
}

// Legal-form markers, evaluated in order. A rule only runs when the previous
// ones found nothing usable.
var normalizationRules = []normalizationRule{
	{
		name:     "strong",
		triggers: []string{"образования", "науки", "предприятие", "фонд"},
	},
	{
		name:     "weak",
		triggers: []string{"учреждение", "организация", "ответственностью", "общество"},
		nested:   "Концерн",
	},
}

// quote glyphs folded into '"'.
var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"„", `"`,
	"‟", `"`,
	"«", `"`,
	"»", `"`,
	"″", `"`,
)

var russianLower = cases.Lower(language.Russian)

// Normalizer derives the short name of an organization from its registered
// name. Results are memoized per instance.
type Normalizer struct {
	cache map[string]string
}

// NewNormalizer returns a normalizer with an empty cache.
func NewNormalizer() *Normalizer {
	return &Normalizer{cache: make(map[string]string)}
}

// Normalize returns the distinguishing part of raw, or raw trimmed when none
// of the rules applies.
func (n *Normalizer) Normalize(raw string) string {
	if v, ok := n.cache[raw]; ok {
		return v
	}

	v := normalize(raw)
	n.cache[raw] = v

	return v
}

func normalize(raw string) string {
	s := raw
	if isUpper(s) {
		s = sentenceCase(s)
	}

	var found string

	for _, rule := range normalizationRules {
		m, ok := afterTrigger(s, rule.triggers)
		if !ok {
			continue
		}

		if rule.nested != "" {
			if i := strings.Index(m, rule.nested); i != -1 {
				m = m[i+len(rule.nested):]
			}
		}

		found = m
		if runeLen(m) > minShortNameLen {
			break
		}
	}

	found = strings.TrimSpace(found)
	if runeLen(found) <= minShortNameLen {
		return strings.TrimSpace(raw)
	}

	return capitalize(stripQuotes(quoteReplacer.Replace(found)))
}

// afterTrigger returns the rest of the line following the trigger that ends
// first in s.
func afterTrigger(s string, triggers []string) (string, bool) {
	best, bestEnd := "", -1

	for _, trigger := range triggers {
		for off := 0; ; {
			i := strings.Index(s[off:], trigger)
			if i == -1 {
				break
			}

			end := off + i + len(trigger)
			off = end

			rest := s[end:]
			if nl := strings.IndexByte(rest, '\n'); nl != -1 {
				rest = rest[:nl]
			}

			if rest == "" {
				continue
			}

			if bestEnd == -1 || end < bestEnd {
				best, bestEnd = rest, end
			}

			break
		}
	}

	return best, bestEnd != -1
}

func stripQuotes(s string) string {
	n := strings.Count(s, `"`)

	switch {
	case n > 0 && n%2 == 0 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) > 1:
		return s[1 : len(s)-1]
	case n == 3 && strings.HasPrefix(s, `"`):
		return s[1:]
	default:
		return s
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if !unicode.IsLower(r) {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}

// isUpper reports whether s has cased letters and none of them is lower-case.
func isUpper(s string) bool {
	cased := false

	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			cased = true
		}
	}

	return cased
}

func sentenceCase(s string) string {
	return capitalize(russianLower.String(s))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
