package notify

import (
	"context"
	"html"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// telegramMaxRunes is the Bot API limit for one message.
const telegramMaxRunes = 4096

// TelegramChannel sends HTML messages through the Telegram Bot API.
type TelegramChannel struct {
	cfg     config.TelegramNotifyConfig
	client  *http.Client
	apiBase string
}

func NewTelegram(cfg config.TelegramNotifyConfig) *TelegramChannel {
	return &TelegramChannel{cfg: cfg, client: newHTTPClient(), apiBase: "https://api.telegram.org"}
}

func (t *TelegramChannel) Name() string       { return "telegram" }
func (t *TelegramChannel) IsConfigured() bool { return t.cfg.BotToken != "" && t.cfg.ChatID != "" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramChannel) Send(ctx context.Context, evt Event) error {
	msg := telegramMessage{ChatID: t.cfg.ChatID, Text: telegramText(evt), ParseMode: "HTML"}
	return postJSON(ctx, t.client, "telegram", t.apiBase+"/bot"+t.cfg.BotToken+"/sendMessage", msg, nil)
}

func telegramText(evt Event) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(evt.Title) + "</b>")
	if evt.Project != "" || evt.Severity != "" {
		b.WriteString("\n<i>" + html.EscapeString(strings.TrimSpace(evt.Project+" "+evt.Severity)) + "</i>")
	}
	b.WriteString("\n\n" + html.EscapeString(evt.Body))
	if evt.URL != "" {
		b.WriteString("\n" + html.EscapeString(evt.URL))
	}
	text := b.String()
	if r := []rune(text); len(r) > telegramMaxRunes {
		text = string(r[:telegramMaxRunes-3]) + "..."
	}
	return text
}
