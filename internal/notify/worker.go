package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Pending is a queued notification awaiting delivery.
type Pending struct {
	ID        int64
	Message   Message
	Attempts  int
	CreatedAt time.Time
}

// Queue persists notifications that could not be delivered inline.
type Queue interface {
	Enqueue(ctx context.Context, m Message) error
	FetchPending(ctx context.Context, limit int) ([]Pending, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, abandoned bool) error
}

// Dispatcher tries to deliver a message inline and parks it on the queue when
// delivery fails. It never returns an error: notification failure must not
// become a request failure.
type Dispatcher struct {
	mailer Mailer
	queue  Queue
}

func NewDispatcher(mailer Mailer, queue Queue) *Dispatcher {
	return &Dispatcher{mailer: mailer, queue: queue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, m Message) {
	if d.mailer != nil {
		if err := d.mailer.Send(ctx, m); err == nil {
			return
		} else {
			log.Warn().Err(err).Str("to", m.To).Msg("inline email delivery failed, queueing for retry")
		}
	}
	if d.queue == nil {
		return
	}
	if err := d.queue.Enqueue(ctx, m); err != nil {
		log.Error().Err(err).Str("to", m.To).Msg("failed to queue notification")
	}
}

// Worker retries queued notifications out-of-band with exponential backoff,
// abandoning a message after maxAttempts.
type Worker struct {
	queue       Queue
	mailer      Mailer
	pollEvery   time.Duration
	batch       int
	maxAttempts int
}

func NewWorker(queue Queue, mailer Mailer) *Worker {
	return &Worker{
		queue:       queue,
		mailer:      mailer,
		pollEvery:   30 * time.Second,
		batch:       20,
		maxAttempts: 5,
	}
}

func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("poll_every", w.pollEvery).Msg("notification worker started")
	t := time.NewTicker(w.pollEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notification worker stopping")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	pending, err := w.queue.FetchPending(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("notification worker: fetch failed")
		return
	}

	for _, p := range pending {
		if err := w.deliver(ctx, p); err != nil {
			attempts := p.Attempts + 1
			abandoned := attempts >= w.maxAttempts
			if markErr := w.queue.MarkFailed(ctx, p.ID, attempts, abandoned); markErr != nil {
				log.Error().Err(markErr).Int64("id", p.ID).Msg("notification worker: mark failed")
			}
			log.Warn().
				Err(err).
				Int64("id", p.ID).
				Int("attempts", attempts).
				Bool("abandoned", abandoned).
				Msg("notification delivery failed")
			continue
		}
		if err := w.queue.MarkSent(ctx, p.ID); err != nil {
			log.Error().Err(err).Int64("id", p.ID).Msg("notification worker: mark sent failed")
		}
	}
}

// deliver retries transient SMTP hiccups within the tick before giving the
// message back to the queue.
func (w *Worker) deliver(ctx context.Context, p Pending) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2),
		ctx,
	)
	return backoff.Retry(func() error {
		return w.mailer.Send(ctx, p.Message)
	}, policy)
}
