package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type FeishuAdapter struct {
	client *HTTPClient
	now    func() time.Time
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client, now: time.Now}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{"tag": "markdown", "text": msg.Description}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{
			"tag":  "markdown",
			"text": "**" + f.Name + "**: " + f.Value,
		})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": msg.Title},
				"template": feishuTemplate(msg.Color),
			},
			"elements": elements,
		},
	}
	if secret != "" {
		ts := strconv.FormatInt(a.now().Unix(), 10)
		payload["timestamp"] = ts
		payload["sign"] = feishuSign(ts, secret)
	}
	body, err := a.client.PostJSON(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	// Feishu answers 200 with a non-zero code for rejected messages.
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if json.Unmarshal(body, &resp) == nil && resp.Code != 0 {
		return fmt.Errorf("feishu rejected message: %d %s", resp.Code, resp.Msg)
	}
	return nil
}

// feishuTemplate picks the card header color closest in hue to an embed
// color.
func feishuTemplate(color int) string {
	r, g, b := color>>16&0xff, color>>8&0xff, color&0xff
	switch {
	case color == 0:
		return "blue"
	case r > 0xc0 && g > 0xc0 && b < 0x80:
		return "yellow"
	case g > r && g > b:
		return "green"
	case r > g && r > b:
		return "red"
	case b > r && b > g:
		return "blue"
	}
	return "grey"
}

// feishuSign is the custom bot signature: HMAC-SHA256 keyed by
// "timestamp\nsecret" over an empty message.
func feishuSign(ts, secret string) string {
	mac := hmac.New(sha256.New, []byte(ts+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
