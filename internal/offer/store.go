package offer

import "context"

// Store is the durable home of offer rows. Implementations must apply
// ConditionalTransition as one indivisible statement: the PENDING/token
// precondition is checked and the row rewritten in the same step.
type Store interface {
	// Insert persists a PENDING offer and returns its id.
	Insert(ctx context.Context, o NewOffer) (int64, error)
	// ConditionalTransition sets status=to and clears the token on the row
	// whose token matches and whose status is still PENDING.
	ConditionalTransition(ctx context.Context, token string, to Status) (int64, error)
	// FindByToken returns ErrNotFound when no row carries token.
	FindByToken(ctx context.Context, token string) (Offer, error)
	// FindByID returns the row with id in any status, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (Offer, error)
	// ListAll returns every offer, newest first.
	ListAll(ctx context.Context) ([]Offer, error)
	// TokenIssued reports whether token was ever assigned, resolved or not.
	TokenIssued(ctx context.Context, token string) (bool, error)
	Ping(ctx context.Context) error
}

// Notifier hands a PENDING offer to the delivery pipeline.
type Notifier interface {
	Notify(ctx context.Context, o Offer) error
}

// Event is published after every committed state change.
type Event struct {
	Type    string `json:"type"`
	OfferID int64  `json:"offerId,omitempty"`
	Status  Status `json:"status"`
	Actor   string `json:"actor,omitempty"`
}

// Event types.
const (
	EventOfferCreated  = "EVENT_OFFER_CREATED"
	EventOfferResolved = "EVENT_OFFER_RESOLVED"
)

// EventPublisher fans committed changes out to live roster views.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
