package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse_StructuredArray(t *testing.T) {
	out := Parse(`[{"question":"What is X?","answer":"X is Y."}]`)

	if out.Stage != StageStructured {
		t.Fatalf("expected structured stage, got %q", out.Stage)
	}
	if len(out.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(out.Turns))
	}
	turn := out.Turns[0]
	if turn.Order != 1 || turn.Question != "What is X?" || turn.Answer != "X is Y." {
		t.Errorf("unexpected turn: %+v", turn)
	}
	if out.Platform != PlatformUnknown {
		t.Errorf("expected platform unknown, got %q", out.Platform)
	}
}

func TestParse_StructuredObjectWithMetadata(t *testing.T) {
	raw := `  {
		"title": "Go Study Session",
		"platform": "claude",
		"sessions": [
			{"question": " First? ", "answer": "One.", "timestamp": "ignored"},
			{"question": "No answer here"},
			{"question": "", "answer": "orphan"},
			{"question": "Third?", "answer": "Three."}
		]
	}`

	out := Parse(raw)

	if out.Stage != StageStructured {
		t.Fatalf("expected structured stage, got %q", out.Stage)
	}
	if out.Title != "Go Study Session" {
		t.Errorf("expected title to propagate, got %q", out.Title)
	}
	if out.Platform != "claude" {
		t.Errorf("expected platform claude, got %q", out.Platform)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(out.Turns))
	}
	if out.Turns[0].Order != 1 || out.Turns[0].Question != "First?" {
		t.Errorf("turn[0] = %+v", out.Turns[0])
	}
	if out.Turns[1].Order != 2 || out.Turns[1].Question != "Third?" || out.Turns[1].Answer != "Three." {
		t.Errorf("turn[1] = %+v", out.Turns[1])
	}
}

func TestParse_StructuredNonStringFieldsDropped(t *testing.T) {
	out := Parse(`[{"question": 42, "answer": "x"}, {"question": "Real?", "answer": "Yes."}]`)

	if len(out.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(out.Turns))
	}
	if out.Turns[0].Order != 1 || out.Turns[0].Question != "Real?" {
		t.Errorf("unexpected turn: %+v", out.Turns[0])
	}
}

func TestParse_StructuredEmptyArrayFailsValidation(t *testing.T) {
	out := Parse(`[]`)

	if len(out.Turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(out.Turns))
	}
	if err := Validate(out); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestParse_MalformedStructuredFallsThrough(t *testing.T) {
	out := Parse("{broken json\nHuman: is this parsed?\nAssistant: yes it is")

	if out.Stage != StageMarkers {
		t.Fatalf("expected markers stage after malformed JSON, got %q", out.Stage)
	}
	if len(out.Turns) != 1 || out.Turns[0].Question != "is this parsed?" || out.Turns[0].Answer != "yes it is" {
		t.Errorf("unexpected turns: %+v", out.Turns)
	}
}

func TestDecodeStructured_WrongShape(t *testing.T) {
	for _, raw := range []string{`{"title": "x"}`, `{"sessions": "nope"}`, `[{"question": "a"`} {
		_, err := decodeStructured(raw)
		if !errors.Is(err, ErrMalformedStructured) {
			t.Errorf("decodeStructured(%s) err = %v, want ErrMalformedStructured", raw, err)
		}
	}
}

func TestParse_StructuredArraySkipsNonObjectItems(t *testing.T) {
	raw := `[
  {"question": "What is X?", "answer": "X is Y."},

  {"question": "What is Z?", "answer": "Z is W."},

  null,
  7,
  "loose string"
]`

	out := Parse(raw)

	if out.Stage != StageStructured {
		t.Fatalf("expected structured stage, got %q", out.Stage)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(out.Turns), out.Turns)
	}
	if out.Turns[0].Question != "What is X?" || out.Turns[1].Order != 2 || out.Turns[1].Answer != "Z is W." {
		t.Errorf("unexpected turns: %+v", out.Turns)
	}
}

func TestParse_StructuredNonStringMetadataIgnored(t *testing.T) {
	raw := `{"title": 5, "platform": 1, "sessions": [
		{"question": "First?", "answer": "One."},
		{"question": "Second?", "answer": "Two."}
	]}`

	out := Parse(raw)

	if out.Stage != StageStructured {
		t.Fatalf("expected structured stage, got %q", out.Stage)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(out.Turns))
	}
	if out.Title != "" {
		t.Errorf("expected empty title, got %q", out.Title)
	}
	if out.Platform != PlatformUnknown {
		t.Errorf("expected platform unknown, got %q", out.Platform)
	}
}

func TestDecodeStructured_ArrayWithoutSessions(t *testing.T) {
	out, err := decodeStructured(`[1, 2, 3]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Turns) != 0 {
		t.Errorf("expected no turns, got %+v", out.Turns)
	}
	if Parse(`[1, 2, 3]`).Stage == StageStructured {
		t.Error("structured stage must not claim input without sessions")
	}
}

func TestParse_MarkersSimple(t *testing.T) {
	out := Parse("Human: hi\nAssistant: hello there")

	if out.Stage != StageMarkers {
		t.Fatalf("expected markers stage, got %q", out.Stage)
	}
	if len(out.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(out.Turns))
	}
	if out.Turns[0].Question != "hi" || out.Turns[0].Answer != "hello there" {
		t.Errorf("unexpected turn: %+v", out.Turns[0])
	}
	if out.Title != "" || out.Platform != PlatformUnknown {
		t.Errorf("expected empty metadata, got title=%q platform=%q", out.Title, out.Platform)
	}
}

func TestParse_MarkersMultiTurnCRLF(t *testing.T) {
	raw := "USER: How do channels work?\r\n\r\nclaude: They pass values between goroutines.\r\n\r\nThey can be buffered.\r\n" +
		"User: And select?\r\nClaude: It waits on several channels."

	out := Parse(raw)

	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(out.Turns), out.Turns)
	}
	if out.Turns[0].Question != "How do channels work?" {
		t.Errorf("turn[0] question = %q", out.Turns[0].Question)
	}
	want := "They pass values between goroutines.\n\nThey can be buffered."
	if out.Turns[0].Answer != want {
		t.Errorf("turn[0] answer = %q, want %q", out.Turns[0].Answer, want)
	}
	if out.Turns[1].Order != 2 || out.Turns[1].Answer != "It waits on several channels." {
		t.Errorf("turn[1] = %+v", out.Turns[1])
	}
}

func TestParse_MarkersAskerWithoutResponder(t *testing.T) {
	out := Parse("Human: first question\nAssistant: first answer\nHuman: left hanging")

	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(out.Turns))
	}
	if out.Turns[1].Question != "left hanging" {
		t.Errorf("turn[1] question = %q", out.Turns[1].Question)
	}
	if out.Turns[1].Answer != "" {
		t.Errorf("expected empty answer for trailing question, got %q", out.Turns[1].Answer)
	}
}

func TestParse_MarkersEmptyQuestionDropped(t *testing.T) {
	out := Parse("Human:   \nAssistant: greeting\nHuman: real question\nAssistant: real answer")

	if len(out.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d: %+v", len(out.Turns), out.Turns)
	}
	if out.Turns[0].Order != 1 || out.Turns[0].Question != "real question" || out.Turns[0].Answer != "real answer" {
		t.Errorf("unexpected turn: %+v", out.Turns[0])
	}
}

func TestParse_MarkersOnlyAtLineStart(t *testing.T) {
	raw := "The form says User: required field.\n\nWe compared Plan A: the cheap one.\n\nFinance preferred the second plan.\n\nSo we went with it."

	out := Parse(raw)

	if out.Stage != StagePairing {
		t.Fatalf("mid-line alias must not trigger the marker stage, got stage %q", out.Stage)
	}
	if len(out.Turns) != 2 {
		t.Errorf("expected 2 paired turns, got %d", len(out.Turns))
	}
}

func TestParser_CustomMarkers(t *testing.T) {
	p := New(Markers{Asker: []string{"Student"}, Responder: []string{"Tutor"}})

	out := p.Parse("Student: what is a monad?\nTutor: a monoid in the category of endofunctors")

	if out.Stage != StageMarkers || len(out.Turns) != 1 {
		t.Fatalf("expected 1 marker turn, got stage=%q turns=%d", out.Stage, len(out.Turns))
	}
	if out.Turns[0].Question != "what is a monad?" {
		t.Errorf("question = %q", out.Turns[0].Question)
	}

	// The default aliases are not active on a custom parser.
	out = p.Parse("Human: hi\nAssistant: hello")
	if out.Stage == StageMarkers {
		t.Errorf("expected custom parser to ignore default aliases")
	}
}

func TestParse_HeuristicQuestions(t *testing.T) {
	raw := strings.Join([]string{
		"How do I sort a slice in Go?",
		"Use sort.Slice with a less function.",
		"It sorts in place.",
		"Explain stable sorting",
		"sort.SliceStable keeps equal elements in their original order.",
	}, "\n\n")

	out := Parse(raw)

	if out.Stage != StageHeuristic {
		t.Fatalf("expected heuristic stage, got %q", out.Stage)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(out.Turns), out.Turns)
	}
	if out.Turns[0].Answer != "Use sort.Slice with a less function.\n\nIt sorts in place." {
		t.Errorf("turn[0] answer = %q", out.Turns[0].Answer)
	}
	if out.Turns[1].Question != "Explain stable sorting" || out.Turns[1].Order != 2 {
		t.Errorf("turn[1] = %+v", out.Turns[1])
	}
}

func TestParse_HeuristicDropsUnansweredQuestion(t *testing.T) {
	raw := "Some preamble text.\n\nWhy is the sky blue?\n\nRayleigh scattering.\n\nAnd sunsets?"

	out := Parse(raw)

	if out.Stage != StageHeuristic {
		t.Fatalf("expected heuristic stage, got %q", out.Stage)
	}
	if len(out.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d: %+v", len(out.Turns), out.Turns)
	}
	if out.Turns[0].Question != "Why is the sky blue?" {
		t.Errorf("question = %q", out.Turns[0].Question)
	}
}

func TestIsQuestionParagraph(t *testing.T) {
	long := strings.Repeat("word ", 120) + "?"
	tests := []struct {
		para string
		want bool
	}{
		{"What is a goroutine", true},
		{"Can you review this?", true},
		{"The build is green.", false},
		{"Whatever works for you.", false},
		{"Doesn't matter much.", false},
		{"Please rename the package", true},
		{long, false},
		{"line1\nline2\nline3\nline4\nline5\nline6?", false},
		{"Can you fix this?\n```go\nx := 1\n```", true},
	}
	for _, tt := range tests {
		if got := isQuestionParagraph(tt.para); got != tt.want {
			t.Errorf("isQuestionParagraph(%.30q) = %v, want %v", tt.para, got, tt.want)
		}
	}
}

func TestParse_SequentialPairingFallback(t *testing.T) {
	paras := []string{
		"The meeting notes from Tuesday are attached here.",
		"Thanks, I will review them before the next sync.",
		"Budget numbers still need a final sign-off today.",
		"Finance said the approval should land by Friday.",
	}

	out := Parse(strings.Join(paras, "\n\n"))

	if out.Stage != StagePairing {
		t.Fatalf("expected pairing stage, got %q", out.Stage)
	}
	if len(out.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(out.Turns))
	}
	if out.Turns[0].Question != paras[0] || out.Turns[0].Answer != paras[1] {
		t.Errorf("turn[0] = %+v", out.Turns[0])
	}
	if out.Turns[1].Order != 2 || out.Turns[1].Question != paras[2] || out.Turns[1].Answer != paras[3] {
		t.Errorf("turn[1] = %+v", out.Turns[1])
	}
}

func TestParse_SequentialPairingDropsOddParagraph(t *testing.T) {
	raw := "Alpha statement.\n\n\n\nBeta statement.\n   \nGamma statement.\n\nDelta statement.\n\nEpsilon statement."

	out := Parse(raw)

	if len(out.Turns) != 2 {
		t.Fatalf("expected floor(5/2)=2 turns, got %d", len(out.Turns))
	}
	if out.Turns[1].Question != "Gamma statement." || out.Turns[1].Answer != "Delta statement." {
		t.Errorf("turn[1] = %+v", out.Turns[1])
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   \n\n  ", "just one paragraph"} {
		out := Parse(raw)
		if len(out.Turns) != 0 {
			t.Errorf("Parse(%q) produced %d turns", raw, len(out.Turns))
		}
		if err := Validate(out); !errors.Is(err, ErrEmptyResult) {
			t.Errorf("Validate(Parse(%q)) = %v, want ErrEmptyResult", raw, err)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	inputs := []string{
		`{"title":"t","sessions":[{"question":"q","answer":"a"}]}`,
		"Human: one\nAssistant: two\nHuman: three",
		"How?\n\nLike this.\n\nWhy?\n\nBecause.",
		"a\n\nb\n\nc",
	}
	for _, raw := range inputs {
		first := Parse(raw)
		second := Parse(raw)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Parse(%q) not deterministic: %+v vs %+v", raw, first, second)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Outcome{}); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}

	allEmpty := Outcome{Turns: []Turn{{Order: 1, Answer: "x"}, {Order: 2, Answer: "y"}}}
	if err := Validate(allEmpty); !errors.Is(err, ErrAllQuestionsEmpty) {
		t.Errorf("expected ErrAllQuestionsEmpty, got %v", err)
	}

	noAnswers := Outcome{Turns: []Turn{{Order: 1, Question: "q"}}}
	if err := Validate(noAnswers); err != nil {
		t.Errorf("expected outcome with empty answers to pass, got %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	if msg := UserMessage(ErrEmptyResult); !strings.HasPrefix(msg, "No Q&A sessions found") {
		t.Errorf("unexpected message %q", msg)
	}
	if msg := UserMessage(ErrAllQuestionsEmpty); msg != "All questions are empty. Please check the format." {
		t.Errorf("unexpected message %q", msg)
	}
	if msg := UserMessage(nil); msg != "" {
		t.Errorf("expected empty message for nil, got %q", msg)
	}
}
