package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	redisstore "github.com/wilsonmesquita03/licitahub-sub000/internal/store/redis"
)

// Notifier consumes TenderChanged events off the transport and mails every
// eligible follower. Delivery failures are logged and counted, never
// propagated: a broken relay must not stall the stream.
const defaultConsumeRetryDelay = time.Second

type Notifier struct {
	transport  redisstore.MessageTransport
	mailer     Mailer
	templates  *Templates
	workers    int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewNotifier(
	transport redisstore.MessageTransport,
	mailer Mailer,
	templates *Templates,
	workers int,
	logger *slog.Logger,
) *Notifier {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		transport:  transport,
		mailer:     mailer,
		templates:  templates,
		workers:    workers,
		retryDelay: defaultConsumeRetryDelay,
		logger:     logger.With("component", "notifier"),
	}
}

// Run blocks consuming events until ctx is canceled. A single goroutine
// reads the transport and fans events out to the delivery workers over a
// channel, so each event is delivered exactly once.
func (n *Notifier) Run(ctx context.Context) error {
	events := make(chan event.TenderChanged)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return n.consumeLoop(gctx, events)
	})
	for i := 0; i < n.workers; i++ {
		g.Go(func() error {
			for ev := range events {
				n.deliver(gctx, ev)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consumeLoop is the sole reader of the transport. Transient consume
// failures wait retryDelay before the next attempt.
func (n *Notifier) consumeLoop(ctx context.Context, events chan<- event.TenderChanged) error {
	for {
		ev, err := n.transport.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Error("consume tender changed event failed", "error", err)
			select {
			case <-time.After(n.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		metrics.NotifyEventsConsumed.Inc()

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev event.TenderChanged) {
	for _, recipient := range ev.Followers {
		subject, body, err := n.templates.Render(ev, recipient)
		if err != nil {
			metrics.NotifyFailed.Inc()
			n.logger.Error("render notification failed",
				"control_number", ev.ControlNumber,
				"to", recipient.Email,
				"error", err,
			)
			continue
		}

		msg := Message{
			ToName:  recipient.Name,
			ToEmail: recipient.Email,
			Subject: subject,
			Body:    body,
		}
		if err := n.mailer.Send(ctx, msg); err != nil {
			metrics.NotifyFailed.Inc()
			n.logger.Error("send notification failed",
				"control_number", ev.ControlNumber,
				"to", recipient.Email,
				"error", err,
			)
			continue
		}
		metrics.NotifySent.Inc()
		n.logger.Debug("notification sent",
			"control_number", ev.ControlNumber,
			"to", recipient.Email,
		)
	}
}
