package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gregdel/pushover"
	"go.uber.org/zap"
)

// Pushover sends run summaries through the Pushover API.
type Pushover struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	logger    *zap.Logger
}

func NewPushover(token, userKey string, logger *zap.Logger) (*Pushover, error) {
	token = strings.TrimSpace(token)
	userKey = strings.TrimSpace(userKey)
	if token == "" {
		return nil, errors.New("pushover api token is required")
	}
	if userKey == "" {
		return nil, errors.New("pushover user key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pushover{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
		logger:    logger,
	}, nil
}

func (p *Pushover) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := truncateMessage(msg.Text, pushover.MessageMaxLength)

	request := &pushover.Message{
		Message:  text,
		Title:    msg.Title,
		URL:      msg.URL,
		URLTitle: msg.URLTitle,
		HTML:     msg.HTML,
	}

	resp, err := p.app.SendMessage(request, p.recipient)
	if err != nil {
		return fmt.Errorf("send pushover notification: %w", err)
	}

	p.logger.Info("push notification sent",
		zap.String("title", msg.Title),
		zap.Int("status", resp.Status),
	)

	return nil
}

// truncateMessage cuts the text to at most max bytes without splitting a
// multi-byte rune.
func truncateMessage(text string, max int) string {
	if len(text) <= max {
		return text
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
