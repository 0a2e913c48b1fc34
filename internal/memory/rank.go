package memory

import (
	"sort"
	"strings"
	"unicode"

	"activityplanner/internal/domain"
)

var stopwords = map[string]bool{
	"what": true, "which": true, "when": true, "where": true, "with": true,
	"that": true, "this": true, "there": true, "their": true, "they": true,
	"have": true, "from": true, "your": true, "about": true, "should": true,
	"would": true, "could": true, "does": true, "into": true, "some": true,
}

// terms returns the distinct lowercase keywords of s, with a trailing plural
// "s" removed so "preference" and "preferences" match.
func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 4 || stopwords[w] {
			continue
		}
		out[strings.TrimSuffix(w, "s")] = true
	}
	return out
}

// Rank scores turns by the share of query keywords they contain and returns
// the best max, newest first among equal scores. turns must be newest first.
// Turns sharing no keyword are dropped.
func Rank(query string, turns []domain.Turn, max int) []domain.MemoryRecord {
	q := terms(query)
	if len(q) == 0 || max <= 0 {
		return nil
	}

	var hits []domain.MemoryRecord
	for _, t := range turns {
		doc := terms(t.UserInput + " " + t.AgentResponse)
		matched := 0
		for term := range q {
			if doc[term] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, domain.MemoryRecord{Turn: t, Score: float64(matched) / float64(len(q))})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}
