package notify

import (
	"context"
	"fmt"
	"time"
)

// Embed colours per event.
var discordColors = map[string]int{
	EventBuy:      0x2ecc71,
	EventSell:     0x3498db,
	EventDump:     0xe74c3c,
	EventSimulate: 0x95a5a6,
}

// DiscordSender posts alerts to a channel webhook as embeds.
type DiscordSender struct {
	url string
	now func() time.Time
	poster
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{url: webhookURL, now: time.Now, poster: newPoster()}
}

func (d *DiscordSender) Name() string { return "discord" }

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	if err := d.post(ctx, d.url, map[string]any{"embeds": []discordEmbed{d.embed(msg)}}); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) embed(msg Message) discordEmbed {
	e := discordEmbed{
		Title:       msg.Title,
		Description: msg.Note,
		Color:       discordColors[msg.Event],
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, discordField{Name: f.Name, Value: f.Value, Inline: len(f.Value) <= 24})
	}
	return e
}
