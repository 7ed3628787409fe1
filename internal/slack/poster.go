package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/claudex/internal/progress"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster sends index notifications to one Slack channel.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostMessage posts text and returns the message timestamp.
func (p *Poster) PostMessage(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

// Reporter posts once when indexing of the titled document finishes or
// fails. Intermediate progress is ignored.
func (p *Poster) Reporter(ctx context.Context, title string) progress.Reporter {
	return progress.ReporterFunc(func(e progress.Event) {
		if e.Stage != progress.StageComplete && e.Stage != progress.StageError {
			return
		}
		ts, err := p.PostMessage(ctx, formatIndexMessage(title, e))
		if err != nil {
			p.logger.Warn("slack notification failed", "title", title, "error", err)
			return
		}
		p.logger.Info("posted index notification to slack", "ts", ts, "title", title)
	})
}

func formatIndexMessage(title string, e progress.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Document:* %s\n", title)
	switch e.Stage {
	case progress.StageComplete:
		fmt.Fprintf(&sb, "Indexed %d sessions.", e.Total)
	default:
		fmt.Fprintf(&sb, "Indexing failed: %s", e.Message)
	}
	return sb.String()
}
