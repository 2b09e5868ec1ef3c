package notify

import (
	"context"
	"time"

	"offerdesk/offer-service/internal/offer"
)

// Dispatcher queues an offer letter for a pending offer. It implements
// offer.Notifier.
type Dispatcher struct {
	queue   *Queue
	hostURL string
	now     func() time.Time
}

// NewDispatcher returns a Dispatcher that links to pages under hostURL.
func NewDispatcher(queue *Queue, hostURL string) *Dispatcher {
	return &Dispatcher{queue: queue, hostURL: hostURL, now: time.Now}
}

// Notify queues the letter job. The offer is already committed; an error
// only means the letter was not queued.
func (d *Dispatcher) Notify(ctx context.Context, o offer.Offer) error {
	return d.queue.Push(ctx, Job{
		OfferID:       o.ID,
		CandidateName: o.CandidateName,
		Email:         o.Email,
		Position:      o.Position,
		Salary:        o.Salary.StringFixed(2),
		Link:          OfferLink(d.hostURL, o.Token),
		EnqueuedAt:    d.now().UTC(),
	})
}
