// Package glossary protects project terminology from generic translation.
//
// Protect swaps every occurrence of a source term for a placeholder token,
// the text is translated, and Restore swaps the placeholders for the target
// terms. Placeholder tokens carry a nonce drawn per Protect call, so two
// translations running at the same time can never restore each other's terms.
package glossary

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/google/uuid"
)

type Term struct {
	Source string
	Target string
}

func TermsFromRepository(rows []repository.GlossaryTerm) []Term {
	terms := make([]Term, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, Term{Source: r.SourceTerm, Target: r.TargetTerm})
	}
	return terms
}

type segment struct {
	text        string
	placeholder bool
}

// Protect replaces terms longest-first, case-insensitively. Text already
// consumed by a longer term is never matched again by a shorter one. The
// returned map holds only terms that were found.
func Protect(text string, terms []Term) (string, map[string]string) {
	mapping := make(map[string]string)
	if text == "" || len(terms) == 0 {
		return text, mapping
	}

	sorted := make([]Term, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i].Source) > utf8.RuneCountInString(sorted[j].Source)
	})

	nonce := newNonce()
	segments := []segment{{text: text}}
	for idx, term := range sorted {
		if strings.TrimSpace(term.Source) == "" {
			continue
		}
		pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term.Source))
		placeholder := fmt.Sprintf("___GLOSSARY_%s_%d___", nonce, idx)

		var found bool
		segments, found = replaceInSegments(segments, pattern, placeholder)
		if found {
			mapping[placeholder] = term.Target
		}
	}

	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.text)
	}
	return b.String(), mapping
}

func replaceInSegments(segments []segment, pattern *regexp.Regexp, placeholder string) ([]segment, bool) {
	next := make([]segment, 0, len(segments))
	found := false
	for _, s := range segments {
		if s.placeholder {
			next = append(next, s)
			continue
		}
		locs := pattern.FindAllStringIndex(s.text, -1)
		if len(locs) == 0 {
			next = append(next, s)
			continue
		}
		found = true
		prev := 0
		for _, loc := range locs {
			if loc[0] > prev {
				next = append(next, segment{text: s.text[prev:loc[0]]})
			}
			next = append(next, segment{text: placeholder, placeholder: true})
			prev = loc[1]
		}
		if prev < len(s.text) {
			next = append(next, segment{text: s.text[prev:]})
		}
	}
	return next, found
}

// Restore replaces each placeholder with its target term. Placeholders that
// no longer appear in translated are returned in missing and left as is.
func Restore(translated string, mapping map[string]string) (result string, missing []string) {
	result = translated
	for placeholder, target := range mapping {
		if !strings.Contains(result, placeholder) {
			missing = append(missing, placeholder)
			continue
		}
		result = strings.ReplaceAll(result, placeholder, target)
	}
	sort.Strings(missing)
	return result, missing
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
