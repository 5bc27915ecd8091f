package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

const msgTypeInteractive = "interactive"

// ErrNoOpenID is returned for recipients that never linked a Lark account.
var ErrNoOpenID = errors.New("recipient has no lark open_id")

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger sends incident notifications as Lark interactive cards.
// Implements port.Notifier.
type Messenger struct {
	messages messageCreator
	limiter  *rate.Limiter
	logger   *zap.Logger
}

var _ port.Notifier = (*Messenger)(nil)

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(sdk *SDKClient, ratePerSecond float64, logger *zap.Logger) *Messenger {
	return newMessenger(sdk.GetClient().Im.Message, ratePerSecond, logger)
}

func newMessenger(messages messageCreator, ratePerSecond float64, logger *zap.Logger) *Messenger {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Messenger{
		messages: messages,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Notify delivers one notification to the recipient's open_id
func (m *Messenger) Notify(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	if recipient == nil || recipient.LarkOpenID == "" {
		return ErrNoOpenID
	}

	content, err := buildCard(n.Title, n.Message)
	if err != nil {
		return err
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(recipient.LarkOpenID).
			MsgType(msgTypeInteractive).
			Content(content).
			Uuid(n.ID).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("notification_id", n.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("notification_id", n.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("notification_id", n.ID),
		zap.String("message_id", messageID))
	return nil
}

// buildCard renders a minimal interactive card
func buildCard(title, body string) (string, error) {
	card := map[string]any{
		"config": map[string]any{"wide_screen_mode": true},
		"header": map[string]any{
			"title": map[string]any{"tag": "plain_text", "content": title},
		},
		"elements": []any{
			map[string]any{
				"tag":  "div",
				"text": map[string]any{"tag": "lark_md", "content": body},
			},
		},
	}
	data, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card content: %w", err)
	}
	return string(data), nil
}
