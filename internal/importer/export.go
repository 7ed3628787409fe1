package importer

import (
	"strings"
	"unicode/utf8"
)

// PlatformClaudeCode tags documents imported from Claude Code session logs.
const PlatformClaudeCode = "claude-code"

const maxTitleRunes = 80

// Export is the structured document shape the parser accepts directly.
type Export struct {
	Title    string          `json:"title,omitempty"`
	Platform string          `json:"platform"`
	Sessions []ExportSession `json:"sessions"`
}

type ExportSession struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BuildExport folds a message sequence into question/answer sessions.
// Consecutive user messages form one question and the assistant messages
// after it form the answer. A question never answered is dropped.
func BuildExport(msgs []Message) Export {
	exp := Export{Platform: PlatformClaudeCode}

	var question, answer []string
	flush := func() {
		if len(question) > 0 && len(answer) > 0 {
			exp.Sessions = append(exp.Sessions, ExportSession{
				Question: strings.Join(question, "\n\n"),
				Answer:   strings.Join(answer, "\n\n"),
			})
		}
		question, answer = nil, nil
	}

	for _, m := range msgs {
		switch m.Role {
		case "user":
			if len(answer) > 0 {
				flush()
			}
			question = append(question, m.Text)
		case "assistant":
			if len(question) > 0 {
				answer = append(answer, m.Text)
			}
		}
	}
	flush()

	if len(exp.Sessions) > 0 {
		exp.Title = titleFrom(exp.Sessions[0].Question)
	}
	return exp
}

func titleFrom(question string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(question), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > maxTitleRunes {
		line = strings.TrimSpace(string([]rune(line)[:maxTitleRunes])) + "..."
	}
	return line
}
