package command

import (
	"context"
	"errors"
	"strings"

	"signalwatch/internal/signal"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	ReplyWelcome = "👋 Welcome! Please send me the currency pairs you want to monitor.\n" +
		"Send them as comma-separated values (e.g. USDJPY, EURUSD)"
	ReplyStopped     = "🛑 Stopped tracking your currency pairs."
	ReplyNotTracking = "ℹ️ You’re not tracking any pairs."
	ReplyInvalid     = "❌ Invalid input. Send comma-separated currency pairs."
	ReplyHelp        = "Commands: /start, /stop, /list. Or send comma-separated currency pairs (e.g. USDJPY, EURUSD)"
	ReplyFailed      = "⚠️ Something went wrong, please try again."

	trackingPrefix = "✅ Now tracking: "
	listPrefix     = "📋 Tracking: "
)

// Registry is the write side of the subscription registry.
type Registry interface {
	Set(ctx context.Context, sub signal.Subscriber, symbols []signal.Symbol) error
	Remove(ctx context.Context, sub signal.Subscriber) (bool, error)
	Get(sub signal.Subscriber) ([]signal.Symbol, bool)
}

// Forgetter drops the alert state of a subscriber.
type Forgetter interface {
	Forget(ctx context.Context, sub signal.Subscriber) error
}

// Handler turns one inbound chat message into a registry change and a reply.
type Handler struct {
	registry Registry
	state    Forgetter
	logger   *zap.Logger
}

func New(reg Registry, state Forgetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: reg, state: state, logger: logger}
}

// Handle processes text sent by sub and returns the reply text.
func (h *Handler) Handle(ctx context.Context, sub signal.Subscriber, text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return h.command(ctx, sub, commandName(text))
	}
	return h.track(ctx, sub, text)
}

// commandName strips arguments and a "@botname" suffix from a command.
func commandName(text string) string {
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

func (h *Handler) command(ctx context.Context, sub signal.Subscriber, name string) string {
	switch name {
	case "/start":
		return ReplyWelcome
	case "/stop":
		return h.stop(ctx, sub)
	case "/list":
		symbols, ok := h.registry.Get(sub)
		if !ok {
			return ReplyNotTracking
		}
		return listPrefix + join(symbols)
	default:
		return ReplyHelp
	}
}

func (h *Handler) stop(ctx context.Context, sub signal.Subscriber) string {
	existed, err := h.registry.Remove(ctx, sub)
	if err != nil {
		h.logger.Warn("failed to remove subscription", zap.String("subscriber", string(sub)), zap.Error(err))
		return ReplyFailed
	}
	if !existed {
		return ReplyNotTracking
	}
	if h.state != nil {
		if err := h.state.Forget(ctx, sub); err != nil {
			h.logger.Warn("failed to forget signal state", zap.String("subscriber", string(sub)), zap.Error(err))
		}
	}
	h.logger.Info("subscription removed", zap.String("subscriber", string(sub)))
	return ReplyStopped
}

func (h *Handler) track(ctx context.Context, sub signal.Subscriber, text string) string {
	symbols, err := ParseSymbols(text)
	if err != nil {
		return ReplyInvalid
	}
	if err := h.registry.Set(ctx, sub, symbols); err != nil {
		h.logger.Warn("failed to set subscription", zap.String("subscriber", string(sub)), zap.Error(err))
		return ReplyFailed
	}
	// registry drops duplicates; reply with what is actually stored
	if stored, ok := h.registry.Get(sub); ok {
		symbols = stored
	}
	h.logger.Info("subscription set",
		zap.String("subscriber", string(sub)),
		zap.Strings("symbols", lo.Map(symbols, func(s signal.Symbol, _ int) string { return string(s) })),
	)
	return trackingPrefix + join(symbols)
}

var errNoSymbols = errors.New("no symbols")

// ParseSymbols splits a comma separated list. Blank items are ignored; any invalid item rejects the list.
func ParseSymbols(text string) ([]signal.Symbol, error) {
	parts := lo.Filter(strings.Split(text, ","), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	if len(parts) == 0 {
		return nil, errNoSymbols
	}

	symbols := make([]signal.Symbol, 0, len(parts))
	for _, p := range parts {
		sym, err := signal.NormalizeSymbol(p)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return lo.Uniq(symbols), nil
}

func join(symbols []signal.Symbol) string {
	return strings.Join(lo.Map(symbols, func(s signal.Symbol, _ int) string { return string(s) }), ", ")
}
