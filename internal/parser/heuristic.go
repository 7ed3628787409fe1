package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	shortParagraphChars = 500
	shortParagraphLines = 5
)

// leadIns are case-insensitive openings that mark a paragraph as a request
// even without a trailing question mark. Each must end on a word boundary.
var leadIns = []string{
	"what", "what's", "why", "how", "how's", "when", "where", "who", "which",
	"can you", "could you", "would you", "will you", "can i", "should i",
	"is there", "are there", "is it", "do you", "does", "did",
	"explain", "describe", "tell me", "show me", "help me", "give me",
	"please", "write", "compare", "summarize", "summarise", "define",
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// splitParagraphs splits on blank-line boundaries and drops empty paragraphs.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseHeuristic(text string) []Turn {
	paras := splitParagraphs(text)

	var qIdx []int
	for i, p := range paras {
		if isQuestionParagraph(p) {
			qIdx = append(qIdx, i)
		}
	}
	if len(qIdx) == 0 {
		return nil
	}

	var pairs [][2]string
	for k, qi := range qIdx {
		end := len(paras)
		if k+1 < len(qIdx) {
			end = qIdx[k+1]
		}
		answer := strings.Join(paras[qi+1:end], "\n\n")
		if answer == "" {
			continue
		}
		pairs = append(pairs, [2]string{paras[qi], answer})
	}
	return numberTurns(pairs)
}

// isQuestionParagraph applies the size ceiling and then looks for a trailing
// question mark or a request lead-in. The following paragraph is not consulted.
func isQuestionParagraph(p string) bool {
	if !isShort(p) {
		return false
	}
	return strings.HasSuffix(p, "?") || hasLeadIn(p)
}

// isShort covers single-line paragraphs too; a code fence does not
// disqualify a paragraph that fits the ceiling.
func isShort(p string) bool {
	return utf8.RuneCountInString(p) < shortParagraphChars &&
		strings.Count(p, "\n")+1 <= shortParagraphLines
}

func hasLeadIn(p string) bool {
	lower := strings.ToLower(p)
	for _, li := range leadIns {
		if !strings.HasPrefix(lower, li) {
			continue
		}
		rest := lower[len(li):]
		if rest == "" {
			return true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' {
			return true
		}
	}
	return false
}
