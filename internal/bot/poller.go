package bot

import (
	"context"
	"time"

	"signalwatch/pkg/telegram"

	"go.uber.org/zap"
)

// UpdateSource long-polls for updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, poll time.Duration) ([]telegram.Update, error)
}

// Poller pulls updates with getUpdates and feeds them to an UpdateHandler.
type Poller struct {
	source      UpdateSource
	handler     *UpdateHandler
	pollTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

type PollerOption func(*Poller)

func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.pollTimeout = d }
}

// WithBackoff sets the wait after a failed poll; it doubles up to limit.
func WithBackoff(initial, limit time.Duration) PollerOption {
	return func(p *Poller) {
		if initial > 0 && limit >= initial {
			p.minBackoff, p.maxBackoff = initial, limit
		}
	}
}

func WithPollerLogger(l *zap.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPoller(source UpdateSource, handler *UpdateHandler, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		handler:     handler,
		pollTimeout: 30 * time.Second,
		minBackoff:  time.Second,
		maxBackoff:  30 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is done. Updates are acknowledged by advancing the offset past them.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	backoff := p.minBackoff

	p.logger.Info("polling for updates", zap.Duration("poll_timeout", p.pollTimeout))
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.logger.Warn("failed to get updates", zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, p.maxBackoff)
			continue
		}
		backoff = p.minBackoff

		for _, u := range updates {
			p.handler.HandleUpdate(ctx, u)
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
	}
}
