package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"offerdesk/offer-service/internal/offer"
)

// Memory is an in-process offer.Store for tests and demos. A single mutex
// stands in for the row lock a relational store would take.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	rows    []offer.Offer
	byToken map[string]int // token -> index into rows
	digests map[string]struct{}
	now     func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		byToken: make(map[string]int),
		digests: make(map[string]struct{}),
		now:     time.Now,
	}
}

func (m *Memory) Insert(ctx context.Context, o offer.NewOffer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if o.Token == "" {
		return 0, fmt.Errorf("insert offer: token is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	digest := offer.TokenDigest(o.Token)
	if _, dup := m.digests[digest]; dup {
		return 0, fmt.Errorf("insert offer: %w", ErrDuplicateToken)
	}

	m.nextID++
	m.rows = append(m.rows, offer.Offer{
		ID:            m.nextID,
		CandidateName: o.CandidateName,
		Email:         o.Email,
		Position:      o.Position,
		Salary:        o.Salary,
		Token:         o.Token,
		Status:        offer.StatusPending,
		CreatedAt:     m.now().UTC(),
	})
	m.byToken[o.Token] = len(m.rows) - 1
	m.digests[digest] = struct{}{}
	return m.nextID, nil
}

func (m *Memory) ConditionalTransition(ctx context.Context, token string, to offer.Status) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byToken[token]
	if !ok || m.rows[i].Status != offer.StatusPending {
		return 0, nil
	}
	m.rows[i].Status = to
	m.rows[i].Token = ""
	delete(m.byToken, token)
	return 1, nil
}

func (m *Memory) FindByToken(ctx context.Context, token string) (offer.Offer, error) {
	if err := ctx.Err(); err != nil {
		return offer.Offer{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byToken[token]
	if !ok {
		return offer.Offer{}, offer.ErrNotFound
	}
	return m.rows[i], nil
}

func (m *Memory) FindByID(ctx context.Context, id int64) (offer.Offer, error) {
	if err := ctx.Err(); err != nil {
		return offer.Offer{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// IDs are assigned sequentially from 1 and rows are never removed.
	if id < 1 || id > int64(len(m.rows)) {
		return offer.Offer{}, offer.ErrNotFound
	}
	return m.rows[id-1], nil
}

func (m *Memory) ListAll(ctx context.Context) ([]offer.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]offer.Offer, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *Memory) TokenIssued(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.digests[offer.TokenDigest(token)]
	return ok, nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
