package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// SlackChannel posts to a Slack incoming webhook.
type SlackChannel struct {
	cfg    config.SlackNotifyConfig
	client *http.Client
	now    func() time.Time
}

func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: newHTTPClient(), now: time.Now}
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.WebhookURL != "" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text"`
	Fields    []slackField `json:"fields,omitempty"`
	Footer    string       `json:"footer"`
	TS        int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	return postJSON(ctx, s.client, "slack", s.cfg.WebhookURL, s.message(evt), nil)
}

func (s *SlackChannel) message(evt Event) slackMessage {
	att := slackAttachment{
		Color:     eventColor(evt),
		Title:     evt.Title,
		TitleLink: evt.URL,
		Text:      evt.Body,
		Footer:    "pipeline-guardian",
		TS:        s.now().Unix(),
	}
	if evt.Project != "" {
		att.Fields = append(att.Fields,
			slackField{Title: "Project", Value: evt.Project, Short: true},
			slackField{Title: "Event", Value: evt.Type, Short: true})
	}
	if evt.Severity != "" {
		att.Fields = append(att.Fields, slackField{Title: "Severity", Value: evt.Severity, Short: true})
	}
	return slackMessage{Text: evt.Title, Attachments: []slackAttachment{att}}
}

// eventColor maps severity to a colour, then falls back to the event type.
func eventColor(evt Event) string {
	if c, ok := severityColors[evt.Severity]; ok {
		return c
	}
	switch evt.Type {
	case EventFixMRCreated, EventJobRetried:
		return "#2EB67D"
	case EventProcessingFailed:
		return "#FF0000"
	}
	return "#888888"
}

var severityColors = map[string]string{
	"critical": "#FF0000",
	"high":     "#FF6600",
	"medium":   "#FFAA00",
	"low":      "#0099FF",
}
