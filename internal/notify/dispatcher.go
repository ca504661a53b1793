package notify

import (
	"context"
	"log/slog"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	minSev   string
	events   map[string]bool
	logger   *slog.Logger
}

// defaultEvents is used when cfg.Events is empty. Retries are routine and
// stay quiet unless asked for.
var defaultEvents = map[string]bool{
	EventFixMRCreated:     true,
	EventManualReview:     true,
	EventHighRiskPipeline: true,
	EventProcessingFailed: true,
}

// NewDispatcher creates a Dispatcher from cfg. Only channels with
// IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	return NewDispatcherWithChannels(cfg,
		NewSlack(cfg.Slack),
		NewTelegram(cfg.Telegram),
		NewEmail(cfg.Email),
		NewWebhook(cfg.Webhook),
	)
}

// NewDispatcherWithChannels builds a Dispatcher over explicit channels,
// applying cfg's event and severity filters.
func NewDispatcherWithChannels(cfg config.NotifyConfig, channels ...Channel) *Dispatcher {
	d := &Dispatcher{minSev: cfg.MinSeverity, events: defaultEvents, logger: slog.Default()}
	if len(cfg.Events) > 0 {
		d.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			d.events[e] = true
		}
	}
	for _, ch := range channels {
		if ch != nil && ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Channels lists the active channel names.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		out = append(out, ch.Name())
	}
	return out
}

// Notify sends evt to all configured channels. Errors are logged but never returned.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if !d.shouldSend(evt) {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			d.logger.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}

func (d *Dispatcher) shouldSend(evt Event) bool {
	if !d.events[evt.Type] {
		return false
	}
	if d.minSev != "" && evt.Severity != "" {
		return severityAtLeast(evt.Severity, d.minSev)
	}
	return true
}

// severityAtLeast returns true if got >= min in severity ordering.
func severityAtLeast(got, min string) bool {
	order := map[string]int{"critical": 4, "high": 3, "medium": 2, "low": 1}
	return order[got] >= order[min]
}
