// Package contentfilter implements the text and image screens applied to
// user submissions before they are stored.
package contentfilter

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// strippedRunes are removed before matching so that "s.i.k" and "s-i-k"
// collapse to the same text.
const strippedRunes = ".,/#!$%^&*;:{}=-_`~()"

var leetReplacer = strings.NewReplacer(
	"1", "i",
	"3", "e",
	"4", "a",
	"0", "o",
	"5", "s",
	"7", "t",
)

// defaultTerms is the built-in banned list. Entries containing stripped
// punctuation can never match and are kept for parity with imported lists.
var defaultTerms = []string{
	// Turkish
	"amk", "aq", "oç", "piç", "yavşak", "göt", "siktir", "pezevenk", "mal",
	"gerizekalı", "aptal", "salak", "dangalak", "hıyar",
	"orospu", "oruspu", "0rospu", "or0spu", "0r0spu", "orospı",
	"amına", "amina", "am1na", "am!na", "@mina", "@min@",
	"sik", "s1k", "sık", "s!k", "s1kt1r", "sigtir",
	// English
	"fuck", "fck", "f*ck", "fuk", "fucc", "fvck",
	"shit", "sh1t", "sh!t", "sh*t", "$hit",
	"bitch", "b1tch", "b!tch", "b*tch",
	"dick", "d1ck", "d!ck", "d*ck",
	"ass", "@ss", "@s$", "a$$",
	"bastard", "b@stard", "b@st@rd",
	"terörist", "terrorist", "şerefsiz", "namussuz", "kahpe",
	// spaced and dotted spellings
	"a.m.k", "a.q", "skt.r", "f.ck", "s.ktir",
	"a m k", "a q", "o ç", "sik tir",
}

// DefaultTerms returns a copy of the built-in banned list.
func DefaultTerms() []string {
	out := make([]string, len(defaultTerms))
	copy(out, defaultTerms)
	return out
}

type termsFile struct {
	Terms []string `yaml:"terms"`
}

// LoadTermsFile reads additional banned terms from a YAML file of the form
//
//	terms:
//	  - word
func LoadTermsFile(path string) ([]string, error) {
	// #nosec G304: path comes from operator configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terms file: %w", err)
	}
	var f termsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse terms file %s: %w", path, err)
	}
	return f.Terms, nil
}

// NormalizedForms are the three spellings of a text that terms are matched
// against.
type NormalizedForms struct {
	Normalized string
	NoSpace    string
	Leet       string
}

// Forms lower-cases text, strips punctuation, collapses whitespace and
// derives the no-space and leet spellings.
func Forms(text string) NormalizedForms {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		if strings.ContainsRune(strippedRunes, r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	normalized := b.String()

	noSpace := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normalized)

	return NormalizedForms{
		Normalized: normalized,
		NoSpace:    noSpace,
		Leet:       leetReplacer.Replace(noSpace),
	}
}

// ProfanityMatcher reports whether text contains a banned term. Matching is
// plain substring search, so innocent words that contain a term also match.
type ProfanityMatcher struct {
	terms []string
}

// NewProfanityMatcher builds a matcher over terms. Terms are lower-cased and
// blank entries dropped.
func NewProfanityMatcher(terms []string) *ProfanityMatcher {
	seen := make(map[string]struct{}, len(terms))
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		clean = append(clean, t)
	}
	return &ProfanityMatcher{terms: clean}
}

// NewDefaultProfanityMatcher uses DefaultTerms plus extra.
func NewDefaultProfanityMatcher(extra ...string) *ProfanityMatcher {
	return NewProfanityMatcher(append(DefaultTerms(), extra...))
}

// Len returns the number of active terms.
func (m *ProfanityMatcher) Len() int {
	return len(m.terms)
}

// ContainsProfanity reports whether any banned term occurs in any form of text.
func (m *ProfanityMatcher) ContainsProfanity(text string) bool {
	_, ok := m.Match(text)
	return ok
}

// Match returns the first banned term found in text.
func (m *ProfanityMatcher) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	f := Forms(text)
	for _, term := range m.terms {
		if strings.Contains(f.Normalized, term) ||
			strings.Contains(f.NoSpace, term) ||
			strings.Contains(f.Leet, term) {
			return term, true
		}
	}
	return "", false
}
