package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestHTTPClient(fn roundTripFunc) *HTTPClient {
	return &HTTPClient{http: &http.Client{Transport: fn}}
}

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body)), Header: make(http.Header)}
}

func TestDiscordAdapterPayload(t *testing.T) {
	var got map[string]any
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return respond(http.StatusNoContent, ""), nil
	})

	err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{
		Title:       "Game opened",
		Description: "alice opened Street Fighter II",
		Color:       12345,
		Timestamp:   "2026-01-01T00:00:00Z",
		Footer:      "relay",
		Fields:      []Field{{Name: "Game", Value: "#3", Inline: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	embeds, ok := got["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("unexpected embeds: %#v", got["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "Game opened" || embed["color"] != float64(12345) {
		t.Fatalf("embed = %v", embed)
	}
	footer, ok := embed["footer"].(map[string]any)
	if !ok || footer["text"] != "relay" {
		t.Fatalf("footer = %v", embed["footer"])
	}
}

func TestDiscordAdapterStatusError(t *testing.T) {
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusTooManyRequests, `{"retry_after":1}`), nil
	})
	err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want 429 StatusError", err)
	}
	if Permanent(err) {
		t.Fatalf("429 reported permanent")
	}
	if !Permanent(&StatusError{Code: http.StatusNotFound}) {
		t.Fatalf("404 not reported permanent")
	}
	if Permanent(&StatusError{Code: http.StatusBadGateway}) {
		t.Fatalf("502 reported permanent")
	}
}

func TestFeishuAdapterSignsAndChecksCode(t *testing.T) {
	var got map[string]any
	code := 0
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		defer r.Body.Close()
		got = nil
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if code != 0 {
			return respond(http.StatusOK, `{"code":19021,"msg":"sign match fail"}`), nil
		}
		return respond(http.StatusOK, `{"code":0}`), nil
	})
	a := NewFeishuAdapter(client)
	a.now = func() time.Time { return time.Unix(1700000000, 0) }

	if err := a.Send(context.Background(), "https://open.feishu.example/hook", "s3cret", Message{Title: "t", Description: "d"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["timestamp"] != "1700000000" {
		t.Fatalf("timestamp = %v", got["timestamp"])
	}
	if got["sign"] != feishuSign("1700000000", "s3cret") || got["sign"] == "" {
		t.Fatalf("sign = %v", got["sign"])
	}

	code = 19021
	if err := a.Send(context.Background(), "https://open.feishu.example/hook", "s3cret", Message{}); err == nil {
		t.Fatalf("expected error for non-zero feishu code")
	}
}

func TestToEmbedClipsToDiscordLimits(t *testing.T) {
	fields := make([]Field, 30)
	for i := range fields {
		fields[i] = Field{Name: "f", Value: strings.Repeat("é", 2000)}
	}
	e := toEmbed(Message{Title: strings.Repeat("x", 300), Fields: fields})
	if n := len([]rune(e.Title)); n != discordTitleMax {
		t.Fatalf("title runes = %d, want %d", n, discordTitleMax)
	}
	if len(e.Fields) != discordFieldMax {
		t.Fatalf("fields = %d, want %d", len(e.Fields), discordFieldMax)
	}
	if n := len([]rune(e.Fields[0].Value)); n != discordFieldValueMax {
		t.Fatalf("field value runes = %d, want %d", n, discordFieldValueMax)
	}
	if e.Footer != nil {
		t.Fatalf("footer set without text")
	}
}

func TestFeishuTemplate(t *testing.T) {
	cases := map[int]string{
		0:        "blue",
		0xFEE75C: "yellow",
		0x3BA55D: "green",
		0x5865F2: "blue",
		0xED4245: "red",
		0x808080: "grey",
	}
	for color, want := range cases {
		if got := feishuTemplate(color); got != want {
			t.Fatalf("feishuTemplate(%#06x) = %q, want %q", color, got, want)
		}
	}
}
