package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"automarket/internal/user"
)

// Queue is the consumer side of the intent queue.
type Queue interface {
	Claim(ctx context.Context, timeout time.Duration) (*Claimed, error)
	Ack(ctx context.Context, c *Claimed) error
	Retry(ctx context.Context, c *Claimed) error
	DeadLetter(ctx context.Context, c *Claimed) error
}

// WorkerConfig tunes the delivery loop.
type WorkerConfig struct {
	Concurrency  int
	PerSecond    float64
	MaxAttempts  int
	BaseDelay    time.Duration
	ClaimTimeout time.Duration
}

// Worker pops intents and turns them into e-mail.
type Worker struct {
	queue   Queue
	users   user.Reader
	mailer  Mailer
	limiter *rate.Limiter
	cfg     WorkerConfig

	// pick chooses the recipient of a catalog-gap intent.
	pick func(managers []user.User) user.User
}

// errNoRecipient marks intents that can never be delivered.
var errNoRecipient = errors.New("no recipient")

// NewWorker builds a Worker. Zero config fields fall back to one goroutine,
// 5 mails/s, 5 attempts and a 2s base backoff.
func NewWorker(queue Queue, users user.Reader, mailer Mailer, cfg WorkerConfig) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 5
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 5 * time.Second
	}
	return &Worker{
		queue:   queue,
		users:   users,
		mailer:  mailer,
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
		cfg:     cfg,
		pick: func(managers []user.User) user.User {
			return managers[rand.IntN(len(managers))]
		},
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				if ctx.Err() != nil {
					return nil
				}
				err := w.ProcessOne(ctx)
				if err == nil || errors.Is(err, ErrEmpty) || ctx.Err() != nil {
					continue
				}
				slog.Warn("notify worker iteration failed", "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
		})
	}
	return g.Wait()
}

// ProcessOne claims and handles a single intent. It returns ErrEmpty when the
// queue had nothing to offer.
func (w *Worker) ProcessOne(ctx context.Context) error {
	c, err := w.queue.Claim(ctx, w.cfg.ClaimTimeout)
	if err != nil {
		return err
	}

	if err := w.limiter.Wait(ctx); err != nil {
		// Shutting down; leave the intent for Recover.
		return err
	}

	err = w.deliver(ctx, c.Intent)
	switch {
	case err == nil:
		return w.queue.Ack(ctx, c)
	case errors.Is(err, errNoRecipient):
		slog.Warn("notification dropped", "id", c.Intent.ID, "kind", c.Intent.Kind, "err", err)
		return w.queue.Ack(ctx, c)
	case c.Intent.Attempt+1 >= w.cfg.MaxAttempts:
		slog.Error("notification dead-lettered", "id", c.Intent.ID, "kind", c.Intent.Kind,
			"attempts", c.Intent.Attempt+1, "err", err)
		return w.queue.DeadLetter(ctx, c)
	}

	delay := w.cfg.BaseDelay << c.Intent.Attempt
	slog.Warn("notification delivery failed, retrying", "id", c.Intent.ID,
		"attempt", c.Intent.Attempt+1, "delay", delay, "err", err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return w.queue.Retry(ctx, c)
}

func (w *Worker) deliver(ctx context.Context, in Intent) error {
	to, err := w.recipient(ctx, in)
	if err != nil {
		return err
	}
	subject, body, err := Render(in)
	if err != nil {
		return fmt.Errorf("%w: %v", errNoRecipient, err)
	}
	return w.mailer.Send(ctx, Message{To: to.Email, Subject: subject, Body: body})
}

func (w *Worker) recipient(ctx context.Context, in Intent) (*user.User, error) {
	switch in.Kind {
	case KindCatalogGap:
		managers, err := w.users.ListUsersWithRole(ctx, user.RoleManager)
		if err != nil {
			return nil, fmt.Errorf("list managers: %w", err)
		}
		if len(managers) == 0 {
			return nil, fmt.Errorf("%w: no managers registered", errNoRecipient)
		}
		m := w.pick(managers)
		return &m, nil
	case KindProfanity:
		m, err := w.users.GetUser(ctx, in.ManagerID)
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: manager %s not found", errNoRecipient, in.ManagerID)
		}
		if err != nil {
			return nil, fmt.Errorf("get manager: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", errNoRecipient, in.Kind)
}
