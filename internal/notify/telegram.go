package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// TelegramSender posts HTML-formatted alerts through the Bot API.
type TelegramSender struct {
	chatID string
	url    string
	poster
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return (&TelegramSender{chatID: chatID, poster: newPoster()}).withBase("https://api.telegram.org", token)
}

func (t *TelegramSender) withBase(base, token string) *TelegramSender {
	t.url = strings.TrimRight(base, "/") + "/bot" + token + "/sendMessage"
	return t
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	err := t.post(ctx, t.url, map[string]any{
		"chat_id":                  t.chatID,
		"text":                     telegramText(msg),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

func telegramText(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(msg.Title))
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n%s: <code>%s</code>", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	if msg.Note != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(msg.Note))
	}
	return b.String()
}
