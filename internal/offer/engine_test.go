package offer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offerdesk/offer-service/internal/offer"
	"offerdesk/offer-service/internal/store"
)

var hr = offer.Actor{Subject: "hr@offerdesk.test"}

func validInput() offer.CreateInput {
	return offer.CreateInput{
		CandidateName: "Asha Rao",
		Email:         "asha@x.com",
		Position:      "Engineer",
		Salary:        "50000",
	}
}

// ─── Fakes ───────────────────────────────────────────────────────────────────

type recordingNotifier struct {
	mu     sync.Mutex
	offers []offer.Offer
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, o offer.Offer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.offers = append(n.offers, o)
	return nil
}

func (n *recordingNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *recordingNotifier) snapshot() []offer.Offer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]offer.Offer(nil), n.offers...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []offer.Event
	err    error
}

func (p *recordingEvents) Publish(_ context.Context, ev offer.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingEvents) snapshot() []offer.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]offer.Event(nil), p.events...)
}

// brokenStore fails every call, as an unreachable database would.
type brokenStore struct{ err error }

func (b brokenStore) Insert(context.Context, offer.NewOffer) (int64, error) { return 0, b.err }
func (b brokenStore) ConditionalTransition(context.Context, string, offer.Status) (int64, error) {
	return 0, b.err
}
func (b brokenStore) FindByToken(context.Context, string) (offer.Offer, error) {
	return offer.Offer{}, b.err
}
func (b brokenStore) FindByID(context.Context, int64) (offer.Offer, error) {
	return offer.Offer{}, b.err
}
func (b brokenStore) ListAll(context.Context) ([]offer.Offer, error)    { return nil, b.err }
func (b brokenStore) TokenIssued(context.Context, string) (bool, error) { return false, b.err }
func (b brokenStore) Ping(context.Context) error                        { return b.err }

// fixedTokens hands out the same token every time.
type fixedTokens string

func (f fixedTokens) Generate() (string, error) { return string(f), nil }

type failingTokens struct{}

func (failingTokens) Generate() (string, error) { return "", errors.New("entropy exhausted") }

// ─── Create / GetByToken ─────────────────────────────────────────────────────

func TestCreateThenGetByToken(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithEmployer("Offerdesk Ltd"))

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)
	require.NotEmpty(t, created.Offer.Token)
	assert.Positive(t, created.Offer.ID)
	assert.Equal(t, offer.StatusPending, created.Offer.Status)
	assert.False(t, created.NotificationQueued, "no notifier configured")

	view, err := e.GetByToken(ctx, created.Offer.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", view.CandidateName)
	assert.Equal(t, "Engineer", view.Position)
	assert.Equal(t, offer.StatusPending, view.Status)
	assert.True(t, view.Salary.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "Offerdesk Ltd", view.Employer)
}

func TestCreate_TrimsInput(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil)

	created, err := e.Create(ctx, hr, offer.CreateInput{
		CandidateName: "  Asha Rao ",
		Email:         " asha@x.com",
		Position:      "Engineer  ",
		Salary:        " 1234.50 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", created.Offer.CandidateName)
	assert.Equal(t, "asha@x.com", created.Offer.Email)
	assert.Equal(t, "Engineer", created.Offer.Position)
	assert.True(t, created.Offer.Salary.Equal(decimal.RequireFromString("1234.5")))
}

func TestCreate_ValidationFailuresPersistNothing(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*offer.CreateInput)
		field string
		msg   string
	}{
		{"empty salary", func(in *offer.CreateInput) { in.Salary = "" }, "salary", "is required"},
		{"blank name", func(in *offer.CreateInput) { in.CandidateName = "   " }, "name", "is required"},
		{"empty email", func(in *offer.CreateInput) { in.Email = "" }, "email", "is required"},
		{"bad email", func(in *offer.CreateInput) { in.Email = "not-an-email" }, "email", "must be a valid email address"},
		{"empty position", func(in *offer.CreateInput) { in.Position = "" }, "position", "is required"},
		{"non numeric salary", func(in *offer.CreateInput) { in.Salary = "fifty" }, "salary", "must be a number"},
		{"zero salary", func(in *offer.CreateInput) { in.Salary = "0" }, "salary", "must be positive"},
		{"negative salary", func(in *offer.CreateInput) { in.Salary = "-10" }, "salary", "must be positive"},
		{"three decimals", func(in *offer.CreateInput) { in.Salary = "10.005" }, "salary", "must have at most 2 decimal places"},
		{"too large", func(in *offer.CreateInput) { in.Salary = "1000000000000" }, "salary", "is too large"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			mem := store.NewMemory()
			e := offer.NewEngine(mem, nil)

			in := validInput()
			tc.edit(&in)
			_, err := e.Create(ctx, hr, in)

			var verr *offer.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.msg, verr.Msg)

			rows, err := mem.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestCreate_RequiresActor(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := offer.NewEngine(mem, nil)

	_, err := e.Create(ctx, offer.Actor{}, validInput())
	assert.ErrorIs(t, err, offer.ErrUnauthorized)

	_, err = e.List(ctx, offer.Actor{Subject: "  "})
	assert.ErrorIs(t, err, offer.ErrUnauthorized)

	rows, err := mem.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreate_TokenFailureIsReturned(t *testing.T) {
	e := offer.NewEngine(store.NewMemory(), failingTokens{})
	_, err := e.Create(context.Background(), hr, validInput())
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestCreate_DuplicateTokenIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), fixedTokens("same-token-every-time"))

	_, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	_, err = e.Create(ctx, hr, validInput())
	var perr *offer.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, store.ErrDuplicateToken)
}

func TestCreate_NotifierAndEvents(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	ev := &recordingEvents{}
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithNotifier(n), offer.WithEvents(ev))

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)
	assert.True(t, created.NotificationQueued)
	require.Len(t, n.offers, 1)
	assert.Equal(t, created.Offer.Token, n.offers[0].Token)

	events := ev.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, offer.EventOfferCreated, events[0].Type)
	assert.Equal(t, created.Offer.ID, events[0].OfferID)
	assert.Equal(t, hr.Subject, events[0].Actor)
}

func TestCreate_NotifierFailureKeepsOffer(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil,
		offer.WithNotifier(&recordingNotifier{err: errors.New("smtp down")}),
		offer.WithEvents(&recordingEvents{err: errors.New("redis down")}),
	)

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)
	assert.False(t, created.NotificationQueued)

	view, err := e.GetByToken(ctx, created.Offer.Token)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, view.Status)
}

// ─── Resend ──────────────────────────────────────────────────────────────────

func TestResend_AfterNotifierFailure(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{err: errors.New("redis down")}
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithNotifier(n))

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)
	require.False(t, created.NotificationQueued)

	_, err = e.Resend(ctx, hr, created.Offer.ID)
	assert.ErrorIs(t, err, offer.ErrNotificationUnavailable)
	assert.ErrorContains(t, err, "redis down")

	n.setErr(nil)
	o, err := e.Resend(ctx, hr, created.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Offer.Token, o.Token)

	sent := n.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, created.Offer.ID, sent[0].ID)
	assert.Equal(t, created.Offer.Token, sent[0].Token)
	assert.Equal(t, "asha@x.com", sent[0].Email)
}

func TestResend_Refusals(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithNotifier(n))

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	_, err = e.Resend(ctx, offer.Actor{}, created.Offer.ID)
	assert.ErrorIs(t, err, offer.ErrUnauthorized)

	_, err = e.Resend(ctx, hr, created.Offer.ID+100)
	assert.ErrorIs(t, err, offer.ErrNotFound)

	_, err = e.Resolve(ctx, created.Offer.Token, "ACCEPTED")
	require.NoError(t, err)
	_, err = e.Resend(ctx, hr, created.Offer.ID)
	assert.ErrorIs(t, err, offer.ErrAlreadyProcessedOrInvalid)

	assert.Len(t, n.snapshot(), 1, "only the letter from Create was queued")
}

func TestResend_WithoutNotifier(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil)

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	_, err = e.Resend(ctx, hr, created.Offer.ID)
	assert.ErrorIs(t, err, offer.ErrNotificationUnavailable)
}

func TestGetByToken_EmptyAndUnknown(t *testing.T) {
	e := offer.NewEngine(store.NewMemory(), nil)
	_, err := e.GetByToken(context.Background(), "")
	assert.ErrorIs(t, err, offer.ErrNotFound)
	_, err = e.GetByToken(context.Background(), "nonexistent-token")
	assert.ErrorIs(t, err, offer.ErrNotFound)
}

// ─── Resolve ─────────────────────────────────────────────────────────────────

func TestResolve_AcceptThenRejectRefused(t *testing.T) {
	ctx := context.Background()
	ev := &recordingEvents{}
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithEvents(ev))

	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)
	token := created.Offer.Token

	res, err := e.Resolve(ctx, token, "ACCEPTED")
	require.NoError(t, err)
	assert.Equal(t, offer.StatusAccepted, res.Status)

	_, err = e.Resolve(ctx, token, "REJECTED")
	assert.ErrorIs(t, err, offer.ErrAlreadyProcessedOrInvalid)
	assert.True(t, offer.IsInvalidLink(err))

	// Token is cleared once resolved.
	_, err = e.GetByToken(ctx, token)
	assert.ErrorIs(t, err, offer.ErrNotFound)

	roster, err := e.List(ctx, hr)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, offer.StatusAccepted, roster[0].Status)

	events := ev.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, offer.EventOfferResolved, events[1].Type)
	assert.Equal(t, offer.StatusAccepted, events[1].Status)
}

func TestResolve_UnknownToken(t *testing.T) {
	e := offer.NewEngine(store.NewMemory(), nil)
	_, err := e.Resolve(context.Background(), "nonexistent-token", "ACCEPTED")
	assert.ErrorIs(t, err, offer.ErrAlreadyProcessedOrInvalid)
	assert.True(t, offer.IsInvalidLink(err))
}

func TestResolve_InputValidation(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil)
	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	for _, decision := range []string{"", "PENDING", "accepted", "MAYBE"} {
		_, err := e.Resolve(ctx, created.Offer.Token, decision)
		var verr *offer.ValidationError
		require.ErrorAs(t, err, &verr, "decision %q", decision)
		assert.Equal(t, "status", verr.Field)
	}

	_, err = e.Resolve(ctx, " ", "ACCEPTED")
	var verr *offer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "token", verr.Field)

	// None of the refused calls touched the offer.
	view, err := e.GetByToken(ctx, created.Offer.Token)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, view.Status)
}

func TestResolve_ConcurrentDecisionsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil)
	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []offer.Status
		refused  int
		surprise []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := "ACCEPTED"
			if i%2 == 0 {
				decision = "REJECTED"
			}
			res, err := e.Resolve(ctx, created.Offer.Token, decision)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, res.Status)
			case errors.Is(err, offer.ErrAlreadyProcessedOrInvalid):
				refused++
			default:
				surprise = append(surprise, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, surprise)
	require.Len(t, winners, 1)
	assert.Equal(t, n-1, refused)

	roster, err := e.List(ctx, hr)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, winners[0], roster[0].Status, "stored status is the winner's")
}

func TestResolve_RetryAfterSuccessNeverAppliesTwice(t *testing.T) {
	ctx := context.Background()
	ev := &recordingEvents{}
	e := offer.NewEngine(store.NewMemory(), nil, offer.WithEvents(ev))
	created, err := e.Create(ctx, hr, validInput())
	require.NoError(t, err)

	_, err = e.Resolve(ctx, created.Offer.Token, "REJECTED")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = e.Resolve(ctx, created.Offer.Token, "REJECTED")
		assert.ErrorIs(t, err, offer.ErrAlreadyProcessedOrInvalid)
		_, err = e.Resolve(ctx, created.Offer.Token, "ACCEPTED")
		assert.ErrorIs(t, err, offer.ErrAlreadyProcessedOrInvalid)
	}

	roster, err := e.List(ctx, hr)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusRejected, roster[0].Status)

	resolved := 0
	for _, x := range ev.snapshot() {
		if x.Type == offer.EventOfferResolved {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
}

func TestTokensAreUniqueAcrossResolvedOffers(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(store.NewMemory(), nil)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		created, err := e.Create(ctx, hr, validInput())
		require.NoError(t, err)
		require.False(t, seen[created.Offer.Token], "token reused")
		seen[created.Offer.Token] = true
		if i%2 == 0 {
			_, err = e.Resolve(ctx, created.Offer.Token, "ACCEPTED")
			require.NoError(t, err)
		}
	}
}

// ─── Persistence failures ────────────────────────────────────────────────────

func TestStoreFailuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	e := offer.NewEngine(brokenStore{err: errors.New("connection refused")}, nil)

	var perr *offer.PersistenceError

	_, err := e.Create(ctx, hr, validInput())
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "insert offer", perr.Op)

	_, err = e.Resolve(ctx, "some-token", "ACCEPTED")
	require.ErrorAs(t, err, &perr)
	assert.False(t, offer.IsInvalidLink(err))

	_, err = e.GetByToken(ctx, "some-token")
	require.ErrorAs(t, err, &perr)

	_, err = e.List(ctx, hr)
	require.ErrorAs(t, err, &perr)

	e = offer.NewEngine(brokenStore{err: errors.New("connection refused")}, nil,
		offer.WithNotifier(&recordingNotifier{}))
	_, err = e.Resend(ctx, hr, 1)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "find offer", perr.Op)
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "salary: must be positive", (&offer.ValidationError{Field: "salary", Msg: "must be positive"}).Error())
	assert.Equal(t, "bad form", (&offer.ValidationError{Msg: "bad form"}).Error())
}
