package offer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxSalary bounds salary to what NUMERIC(14,2) can hold.
var maxSalary = decimal.New(1, 12)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ─── Engine ──────────────────────────────────────────────────────────────────

// Engine owns the offer lifecycle. It keeps no offer state of its own: every
// decision is made by the store's atomic statements.
type Engine struct {
	store    Store
	tokens   TokenGenerator
	notifier Notifier
	events   EventPublisher
	employer string
	log      *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the delivery pipeline called after a successful Create.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithEvents sets the publisher for committed changes.
func WithEvents(p EventPublisher) Option { return func(e *Engine) { e.events = p } }

// WithEmployer sets the employer name shown on the decision page.
func WithEmployer(name string) Option { return func(e *Engine) { e.employer = name } }

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine returns an Engine over store. A nil tokens uses UUIDTokens.
func NewEngine(store Store, tokens TokenGenerator, opts ...Option) *Engine {
	if tokens == nil {
		tokens = UUIDTokens{}
	}
	e := &Engine{
		store:  store,
		tokens: tokens,
		log:    slog.Default(),
		tracer: otel.Tracer("offerdesk/offer-service/offer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─── Business logic ───────────────────────────────────────────────────────────

// Create validates the HR form, assigns a token and inserts a PENDING offer.
// Notification is attempted afterwards and never undoes the insert.
func (e *Engine) Create(ctx context.Context, actor Actor, in CreateInput) (*Created, error) {
	ctx, span := e.tracer.Start(ctx, "offer.Create")
	defer span.End()

	if !actor.Authorized() {
		return nil, fail(span, ErrUnauthorized)
	}

	salary, err := normalizeCreate(&in)
	if err != nil {
		return nil, fail(span, err)
	}

	token, err := e.tokens.Generate()
	if err != nil {
		return nil, fail(span, err)
	}

	row := NewOffer{
		CandidateName: in.CandidateName,
		Email:         in.Email,
		Position:      in.Position,
		Salary:        salary,
		Token:         token,
	}
	id, err := e.store.Insert(ctx, row)
	if err != nil {
		return nil, fail(span, &PersistenceError{Op: "insert offer", Err: err})
	}
	span.SetAttributes(attribute.Int64("offer.id", id))

	o := Offer{
		ID:            id,
		CandidateName: row.CandidateName,
		Email:         row.Email,
		Position:      row.Position,
		Salary:        row.Salary,
		Token:         token,
		Status:        StatusPending,
	}
	e.log.Info("offer created", "offerId", id, "actor", actor.Subject, "token", shortToken(token))

	out := &Created{Offer: o}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, o); err != nil {
			// The row stays PENDING; Resend queues the letter again.
			e.log.Warn("offer notification not queued", "offerId", id, "err", err)
		} else {
			out.NotificationQueued = true
		}
	}

	e.publish(ctx, Event{Type: EventOfferCreated, OfferID: id, Status: StatusPending, Actor: actor.Subject})
	return out, nil
}

// Resolve applies the candidate's decision exactly once. Concurrent or
// repeated calls for one token race inside the store's conditional update;
// all but one observe zero affected rows.
func (e *Engine) Resolve(ctx context.Context, token, decision string) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "offer.Resolve")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return Result{}, fail(span, &ValidationError{Field: "token", Msg: "is required"})
	}
	to, err := ParseDecision(decision)
	if err != nil {
		return Result{}, fail(span, &ValidationError{Field: "status", Msg: "must be ACCEPTED or REJECTED"})
	}

	n, err := e.store.ConditionalTransition(ctx, token, to)
	if err != nil {
		return Result{}, fail(span, &PersistenceError{Op: "transition offer", Err: err})
	}
	switch n {
	case 0:
		e.log.Info("offer resolve refused", "token", shortToken(token), "reason", e.refusalReason(ctx, token))
		return Result{}, fail(span, ErrAlreadyProcessedOrInvalid)
	case 1:
	default:
		// Unique token index makes this unreachable; refuse to call it success.
		return Result{}, fail(span, &PersistenceError{
			Op:  "transition offer",
			Err: fmt.Errorf("%d rows matched one token", n),
		})
	}

	span.SetAttributes(attribute.String("offer.status", string(to)))
	e.log.Info("offer resolved", "status", to, "token", shortToken(token))
	e.publish(ctx, Event{Type: EventOfferResolved, Status: to})
	return Result{Status: to}, nil
}

// Resend hands a still-pending offer to the notifier again, for letters
// that were never queued or never arrived.
func (e *Engine) Resend(ctx context.Context, actor Actor, id int64) (Offer, error) {
	ctx, span := e.tracer.Start(ctx, "offer.Resend")
	defer span.End()
	span.SetAttributes(attribute.Int64("offer.id", id))

	if !actor.Authorized() {
		return Offer{}, fail(span, ErrUnauthorized)
	}
	if e.notifier == nil {
		return Offer{}, fail(span, ErrNotificationUnavailable)
	}

	o, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Offer{}, fail(span, ErrNotFound)
		}
		return Offer{}, fail(span, &PersistenceError{Op: "find offer", Err: err})
	}
	if o.Status != StatusPending {
		e.log.Info("offer resend refused", "offerId", id, "status", o.Status, "actor", actor.Subject)
		return Offer{}, fail(span, ErrAlreadyProcessedOrInvalid)
	}

	if err := e.notifier.Notify(ctx, o); err != nil {
		e.log.Warn("offer notification not queued", "offerId", id, "err", err)
		return Offer{}, fail(span, fmt.Errorf("%w: %w", ErrNotificationUnavailable, err))
	}
	e.log.Info("offer notification requeued", "offerId", id, "actor", actor.Subject, "token", shortToken(o.Token))
	return o, nil
}

// GetByToken returns the decision-page view of a still-pending token.
func (e *Engine) GetByToken(ctx context.Context, token string) (View, error) {
	ctx, span := e.tracer.Start(ctx, "offer.GetByToken")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return View{}, fail(span, ErrNotFound)
	}
	o, err := e.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, fail(span, ErrNotFound)
		}
		return View{}, fail(span, &PersistenceError{Op: "find offer", Err: err})
	}
	return View{
		CandidateName: o.CandidateName,
		Position:      o.Position,
		Salary:        o.Salary,
		Status:        o.Status,
		Employer:      e.employer,
	}, nil
}

// List returns the HR roster, newest first.
func (e *Engine) List(ctx context.Context, actor Actor) ([]Offer, error) {
	ctx, span := e.tracer.Start(ctx, "offer.List")
	defer span.End()

	if !actor.Authorized() {
		return nil, fail(span, ErrUnauthorized)
	}
	offers, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, fail(span, &PersistenceError{Op: "list offers", Err: err})
	}
	return offers, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// normalizeCreate trims the form in place and parses the salary.
func normalizeCreate(in *CreateInput) (decimal.Decimal, error) {
	in.CandidateName = strings.TrimSpace(in.CandidateName)
	in.Email = strings.TrimSpace(in.Email)
	in.Position = strings.TrimSpace(in.Position)
	in.Salary = strings.TrimSpace(in.Salary)

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			msg := "is required"
			if fe.Tag() == "email" {
				msg = "must be a valid email address"
			}
			return decimal.Decimal{}, &ValidationError{Field: fe.Field(), Msg: msg}
		}
		return decimal.Decimal{}, &ValidationError{Msg: err.Error()}
	}

	salary, err := decimal.NewFromString(in.Salary)
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: "salary", Msg: "must be a number"}
	}
	switch {
	case !salary.IsPositive():
		return decimal.Decimal{}, &ValidationError{Field: "salary", Msg: "must be positive"}
	case !salary.Equal(salary.Round(2)):
		return decimal.Decimal{}, &ValidationError{Field: "salary", Msg: "must have at most 2 decimal places"}
	case salary.GreaterThanOrEqual(maxSalary):
		return decimal.Decimal{}, &ValidationError{Field: "salary", Msg: "is too large"}
	}
	return salary, nil
}

// refusalReason distinguishes consumed tokens from unknown ones for the log
// only; callers always see ErrAlreadyProcessedOrInvalid.
func (e *Engine) refusalReason(ctx context.Context, token string) string {
	issued, err := e.store.TokenIssued(ctx, token)
	switch {
	case err != nil:
		return "undetermined"
	case issued:
		return "already processed"
	default:
		return "unknown token"
	}
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("publish offer event failed", "type", ev.Type, "err", err)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
