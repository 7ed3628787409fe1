package importer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Message is one user or assistant message recovered from a session log.
type Message struct {
	Role      string // "user" or "assistant"
	Text      string
	Timestamp time.Time
}

type sessionLine struct {
	Type       string      `json:"type"`
	UUID       string      `json:"uuid"`
	ParentUUID *string     `json:"parentUuid"`
	Timestamp  string      `json:"timestamp"`
	Message    lineMessage `json:"message"`
}

type lineMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ReadClaudeCodeSession reads a Claude Code JSONL session log, following the
// parentUuid chain, and returns its text messages in conversation order.
// Tool calls, tool results and thinking blocks are dropped.
func ReadClaudeCodeSession(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	byUUID := make(map[string]*sessionLine)
	children := make(map[string]string)
	var roots []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		var line sessionLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "user" && line.Type != "assistant" {
			continue
		}

		byUUID[line.UUID] = &line
		if line.ParentUUID == nil || *line.ParentUUID == "" {
			roots = append(roots, line.UUID)
		} else {
			children[*line.ParentUUID] = line.UUID
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	var ordered []*sessionLine
	visited := make(map[string]bool, len(byUUID))
	for _, root := range roots {
		for id := root; id != "" && !visited[id]; id = children[id] {
			if line, ok := byUUID[id]; ok {
				ordered = append(ordered, line)
				visited[id] = true
			}
		}
	}

	var msgs []Message
	for _, line := range ordered {
		text, toolResult := lineText(line)
		if toolResult || text == "" {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, line.Timestamp)
		msgs = append(msgs, Message{Role: line.Type, Text: text, Timestamp: ts})
	}
	return msgs, nil
}

// lineText returns the text of a message and whether it only carries a tool result.
func lineText(line *sessionLine) (string, bool) {
	if line.Message.Content == nil {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(line.Message.Content, &plain); err == nil {
		return strings.TrimSpace(plain), false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(line.Message.Content, &blocks); err != nil {
		return "", false
	}

	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "tool_result":
			return "", true
		case "text":
			if t := strings.TrimSpace(b.Text); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n"), false
}
