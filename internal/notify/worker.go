package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// popTimeout bounds each BLMOVE so shutdown is noticed promptly.
const popTimeout = 5 * time.Second

// Worker drains the letter queue.
type Worker struct {
	queue       *Queue
	sender      Sender
	employer    Employer
	maxAttempts int
	backoff     func(attempt int) time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewWorker returns a Worker that gives each job up to maxAttempts tries
// before burying it.
func NewWorker(queue *Queue, sender Sender, employer Employer, maxAttempts int, log *slog.Logger) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:       queue,
		sender:      sender,
		employer:    employer,
		maxAttempts: maxAttempts,
		backoff:     linearBackoff,
		now:         time.Now,
		log:         log,
	}
}

func linearBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 2 * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Run requeues jobs orphaned by a previous worker, then processes jobs until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	recovered, err := w.queue.Recover(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("recover in-flight letters: %w", err)
	}
	if recovered > 0 {
		w.log.Warn("requeued in-flight offer letters", "count", recovered)
	}
	w.log.Info("letter worker started", "queue", w.queue.key, "maxAttempts", w.maxAttempts)
	for {
		if ctx.Err() != nil {
			w.log.Info("letter worker stopped")
			return nil
		}
		if _, err := w.ProcessOne(ctx, popTimeout); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("letter worker", "err", err)
			sleep(ctx, time.Second)
		}
	}
}

// ProcessOne handles at most one job and reports whether one was found.
// Delivery failures are handled by requeue or burial and are not returned;
// only queue errors are.
func (w *Worker) ProcessOne(ctx context.Context, timeout time.Duration) (bool, error) {
	job, err := w.queue.Pop(ctx, timeout)
	if err != nil || job == nil {
		return false, err
	}

	// Settle the job even if ctx ends mid-delivery; an unsettled job waits
	// on the processing list for the next Recover.
	settleCtx := context.WithoutCancel(ctx)

	if err := w.deliver(ctx, *job); err != nil {
		job.Attempts++
		job.LastError = err.Error()
		if job.Attempts >= w.maxAttempts {
			w.log.Error("offer letter dead-lettered", "offerId", job.OfferID, "attempts", job.Attempts, "err", err)
			return true, w.queue.Bury(settleCtx, *job)
		}
		w.log.Warn("offer letter failed, requeued", "offerId", job.OfferID, "attempts", job.Attempts, "err", err)
		sleep(ctx, w.backoff(job.Attempts))
		return true, w.queue.Retry(settleCtx, *job)
	}

	w.log.Info("offer letter sent", "offerId", job.OfferID)
	return true, w.queue.Ack(settleCtx, *job)
}

func (w *Worker) deliver(ctx context.Context, job Job) error {
	if job.Email == "" {
		return errors.New("job has no recipient")
	}
	pdf, err := renderLetterBytes(w.employer, job, w.now())
	if err != nil {
		return err
	}
	return w.sender.Send(ctx, Message{
		To:      job.Email,
		Subject: fmt.Sprintf("Your offer from %s", w.employer.Name),
		Body: fmt.Sprintf(
			"Dear %s,\n\nPlease find attached your offer letter for the position of %s.\n\n"+
				"To accept or reject the offer, open this link:\n%s\n\nThe link can be used once.\n\n%s\n",
			job.CandidateName, job.Position, job.Link, w.employer.Name),
		AttachmentName: fmt.Sprintf("offer-letter-%d.pdf", job.OfferID),
		Attachment:     pdf,
	})
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
