package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"signalwatch/internal/signal"
	"signalwatch/pkg/telegram"

	"go.uber.org/zap"
)

// Commands handles the text of one chat message and returns the reply.
type Commands interface {
	Handle(ctx context.Context, sub signal.Subscriber, text string) string
}

// Replier sends a reply to a chat.
type Replier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// UpdateHandler routes Telegram updates to the command handler.
type UpdateHandler struct {
	commands Commands
	replier  Replier
	timeout  time.Duration
	logger   *zap.Logger
}

// NewUpdateHandler creates a handler; replyTimeout bounds the reply call, zero means none.
func NewUpdateHandler(commands Commands, replier Replier, replyTimeout time.Duration, logger *zap.Logger) *UpdateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateHandler{commands: commands, replier: replier, timeout: replyTimeout, logger: logger}
}

// HandleRaw decodes a webhook body and handles it.
func (h *UpdateHandler) HandleRaw(ctx context.Context, body []byte) error {
	var u telegram.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	h.HandleUpdate(ctx, u)
	return nil
}

// HandleUpdate processes one update. Anything but a text message is ignored.
// A panic while handling is logged and does not escape.
func (h *UpdateHandler) HandleUpdate(ctx context.Context, u telegram.Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("update handling panicked",
				zap.Int64("update_id", u.UpdateID),
				zap.Int64("chat_id", u.Message.Chat.ID),
				zap.Error(fmt.Errorf("%v", rec)),
				zap.Stack("stack"),
			)
		}
	}()
	if u.Message.From != nil && u.Message.From.IsBot {
		return
	}

	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	reply := h.commands.Handle(ctx, signal.Subscriber(chatID), u.Message.Text)
	if reply == "" {
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := h.replier.SendMessage(ctx, chatID, reply); err != nil {
		h.logger.Warn("failed to send reply",
			zap.String("subscriber", chatID),
			zap.Int64("update_id", u.UpdateID),
			zap.Error(err),
		)
	}
}
