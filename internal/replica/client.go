package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
)

// Config - настройки реплики
type Config struct {
	// GuardWindow holds back pushes about an entity with a local mutation
	// in flight.
	GuardWindow time.Duration
	// FlushInterval is how often held-back pushes are re-examined.
	FlushInterval time.Duration
	// ReconnectDelay is the pause before redialing the push endpoint.
	ReconnectDelay time.Duration
}

// DefaultConfig returns default replica settings.
func DefaultConfig() Config {
	return Config{
		GuardWindow:    2 * time.Second,
		FlushInterval:  500 * time.Millisecond,
		ReconnectDelay: 2 * time.Second,
	}
}

// Client keeps a View of the watched days consistent with the authority:
// local mutations are applied optimistically, confirmed by the API answer
// and everybody else's changes arrive as pushes.
type Client struct {
	authority  Authority
	subscriber Subscriber
	reconciler *Reconciler
	cfg        Config
	logger     *zap.Logger
}

func NewClient(authority Authority, subscriber Subscriber, cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	return &Client{
		authority:  authority,
		subscriber: subscriber,
		reconciler: NewReconciler(NewView(), NewPendingQueue(), cfg.GuardWindow, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *Client) View() *View { return c.reconciler.View() }

func (c *Client) Reconciler() *Reconciler { return c.reconciler }

// Watch loads the dates and adds them to the push filter.
func (c *Client) Watch(ctx context.Context, dates ...domain.Date) error {
	for _, d := range domain.UniqueDates(dates) {
		if err := c.reload(ctx, d); err != nil {
			return err
		}
	}
	if err := c.subscriber.UpdateWatch(c.View().Dates()); err != nil && err != ErrNotConnected {
		return err
	}
	return nil
}

// Submit applies the guess of m locally and issues req. A mutation whose
// ctx ends before it is sent is dropped; once sent it runs to completion and
// is reconciled normally.
func (c *Client) Submit(ctx context.Context, m *PendingMutation, req MutationRequest) error {
	if err := c.reconciler.Optimistic(m); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		if dates, ok := c.reconciler.Cancel(m.CorrelationID); ok {
			c.reloadAll(context.WithoutCancel(ctx), dates)
		}
		return err
	}

	c.reconciler.MarkSent(m.CorrelationID)
	sendCtx := context.WithoutCancel(ctx)
	req.CorrelationID = m.CorrelationID

	events, err := c.authority.Mutate(sendCtx, req)
	if err != nil {
		c.logger.Debug("Mutation rejected",
			zap.String("operation", m.Operation),
			zap.String("correlation_id", m.CorrelationID),
			zap.Error(err))
		c.reloadAll(sendCtx, c.reconciler.Reject(m.CorrelationID))
		return err
	}
	if err := c.reconciler.ApplyConfirmed(m.CorrelationID, events); err != nil {
		c.logger.Warn("Failed to merge confirmation, reloading",
			zap.String("correlation_id", m.CorrelationID),
			zap.Error(err))
		c.reloadAll(sendCtx, m.Dates)
	}
	return nil
}

// Run consumes pushes until ctx ends, reconnecting when the connection
// drops. After every (re)connect the watched days are reloaded since pushes
// may have been missed.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		events, err := c.subscriber.Subscribe(ctx, c.View().Dates())
		if err != nil {
			c.logger.Warn("Failed to subscribe to pushes", zap.Error(err))
		} else {
			c.reloadAll(ctx, c.View().Dates())
			c.consume(ctx, events, ticker.C)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) consume(ctx context.Context, events <-chan domain.ChangeEvent, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.reconciler.Flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			res := c.reconciler.ApplyPush(e)
			if len(res.Reload) > 0 {
				c.logger.Debug("Sequence gap, reloading",
					zap.Uint64("seq", e.Seq),
					zap.Int("days", len(res.Reload)))
				c.reloadAll(ctx, res.Reload)
			}
		}
	}
}

func (c *Client) reloadAll(ctx context.Context, dates []domain.Date) {
	for _, d := range dates {
		if err := c.reload(ctx, d); err != nil {
			c.logger.Warn("Failed to reload day",
				zap.String("date", d.String()),
				zap.Error(err))
		}
	}
}

func (c *Client) reload(ctx context.Context, d domain.Date) error {
	day, err := c.authority.GetDay(ctx, d)
	if err != nil {
		return err
	}
	c.reconciler.Load(day)
	return nil
}
