package parser

import (
	"regexp"
	"sort"
	"strings"
)

type markerStage struct {
	asker     *regexp.Regexp
	responder *regexp.Regexp
}

func newMarkerStage(m Markers) *markerStage {
	return &markerStage{
		asker:     markerRegexp(m.Asker),
		responder: markerRegexp(m.Responder),
	}
}

// markerRegexp matches any alias followed by a colon at the start of a line.
func markerRegexp(aliases []string) *regexp.Regexp {
	quoted := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(a))
	}
	// Longest first so "Human" is preferred over "H".
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?im)^[ \t]*(?:` + strings.Join(quoted, "|") + `)[ \t]*:`)
}

func (s *markerStage) parse(text string) []Turn {
	askers := s.asker.FindAllStringIndex(text, -1)
	if len(askers) == 0 {
		return nil
	}
	responders := s.responder.FindAllStringIndex(text, -1)

	var pairs [][2]string
	for _, am := range askers {
		qStart := am[1]
		qEnd := len(text)
		answer := ""

		if r := firstAtOrAfter(responders, am[0]); r != nil {
			if r[0] >= qStart {
				qEnd = r[0]
			}
			aEnd := len(text)
			if next := firstAtOrAfter(askers, r[1]); next != nil {
				aEnd = next[0]
			}
			answer = strings.TrimSpace(text[r[1]:aEnd])
		}

		question := strings.TrimSpace(text[qStart:qEnd])
		if question == "" {
			continue
		}
		pairs = append(pairs, [2]string{question, answer})
	}
	return numberTurns(pairs)
}

// firstAtOrAfter returns the first match starting at or after pos.
func firstAtOrAfter(matches [][]int, pos int) []int {
	i := sort.Search(len(matches), func(i int) bool { return matches[i][0] >= pos })
	if i == len(matches) {
		return nil
	}
	return matches[i]
}
