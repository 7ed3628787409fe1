// Package parser recovers ordered question/answer turns from a raw chat transcript.
//
// Parsing runs a fixed cascade of stages, from most to least structured:
// structured export (JSON), explicit role markers, question-paragraph
// heuristics and finally sequential paragraph pairing. The first stage that
// yields at least one turn wins; later stages are not consulted.
package parser

import (
	"strings"
)

// stage inspects text and returns nil when it does not recognise it.
type stage struct {
	name string
	run  func(text string) *Outcome
}

// Parser holds the compiled cascade. It carries no mutable state, so one
// Parser can be shared between goroutines.
type Parser struct {
	stages []stage
}

// New builds a parser using the given marker aliases. Empty alias lists fall
// back to the defaults.
func New(m Markers) *Parser {
	def := DefaultMarkers()
	if len(m.Asker) == 0 {
		m.Asker = def.Asker
	}
	if len(m.Responder) == 0 {
		m.Responder = def.Responder
	}

	mk := newMarkerStage(m)
	return &Parser{
		stages: []stage{
			{name: StageStructured, run: parseStructured},
			{name: StageMarkers, run: onNormalized(mk.parse)},
			{name: StageHeuristic, run: onNormalized(parseHeuristic)},
			{name: StagePairing, run: onNormalized(parsePairs)},
		},
	}
}

var defaultParser = New(DefaultMarkers())

// Parse runs the cascade with the default marker aliases.
func Parse(raw string) Outcome {
	return defaultParser.Parse(raw)
}

// Parse runs the cascade. It never fails: unrecognisable input produces an
// outcome with no turns, which Validate then rejects.
func (p *Parser) Parse(raw string) Outcome {
	text := strings.TrimSpace(raw)
	for _, s := range p.stages {
		out := s.run(text)
		if out == nil {
			continue
		}
		out.Stage = s.name
		if out.Platform == "" {
			out.Platform = PlatformUnknown
		}
		return *out
	}
	return Outcome{Platform: PlatformUnknown, Stage: StagePairing}
}

// onNormalized wraps a text stage so it sees a single line-ending convention.
func onNormalized(fn func(text string) []Turn) func(string) *Outcome {
	return func(text string) *Outcome {
		turns := fn(normalizeNewlines(text))
		if len(turns) == 0 {
			return nil
		}
		return &Outcome{Turns: turns}
	}
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
