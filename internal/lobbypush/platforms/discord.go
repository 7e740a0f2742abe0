package platforms

import (
	"context"
	"unicode/utf8"
)

// Discord rejects embeds past these sizes.
const (
	discordTitleMax       = 256
	discordDescriptionMax = 4096
	discordFieldMax       = 25
	discordFieldValueMax  = 1024
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type DiscordAdapter struct {
	client *HTTPClient
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client}
}

func (a *DiscordAdapter) Name() string { return "discord" }

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	_, err := a.client.PostJSON(ctx, endpoint, discordPayload{Embeds: []discordEmbed{toEmbed(msg)}})
	return err
}

func toEmbed(msg Message) discordEmbed {
	e := discordEmbed{
		Title:       clip(msg.Title, discordTitleMax),
		Description: clip(msg.Description, discordDescriptionMax),
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
	}
	if msg.Footer != "" {
		e.Footer = &discordFooter{Text: msg.Footer}
	}
	for i, f := range msg.Fields {
		if i == discordFieldMax {
			break
		}
		e.Fields = append(e.Fields, discordField{Name: f.Name, Value: clip(f.Value, discordFieldValueMax), Inline: f.Inline})
	}
	return e
}

// clip cuts s to at most max runes.
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
