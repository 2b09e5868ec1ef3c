package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"offerdesk/offer-service/internal/offer"
)

// uniqueViolation is the SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// Postgres is the production offer.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a store over an already-connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Insert writes one PENDING row in a single statement; a failure leaves
// nothing behind.
func (s *Postgres) Insert(ctx context.Context, o offer.NewOffer) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO offers (candidate_name, email, position, salary, token, token_digest, status)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, 'PENDING')
		 RETURNING id`,
		o.CandidateName, o.Email, o.Position, o.Salary.String(), o.Token, offer.TokenDigest(o.Token),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("insert offer: %w", ErrDuplicateToken)
		}
		return 0, fmt.Errorf("insert offer: %w", err)
	}
	return id, nil
}

// ConditionalTransition is the compare-and-swap at the heart of Resolve.
// PostgreSQL row locking lets exactly one concurrent caller match the
// PENDING predicate; the others re-evaluate it after the winner commits and
// match nothing.
func (s *Postgres) ConditionalTransition(ctx context.Context, token string, to offer.Status) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE offers
		 SET status = $1::offer_status,
		     token  = NULL
		 WHERE token = $2
		   AND status = 'PENDING'`,
		string(to), token,
	)
	if err != nil {
		return 0, fmt.Errorf("transition offer: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) FindByToken(ctx context.Context, token string) (offer.Offer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, candidate_name, email, position, salary::text,
		        COALESCE(token, ''), status::text, created_at
		 FROM offers
		 WHERE token = $1`,
		token,
	)
	o, err := scanOffer(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return offer.Offer{}, offer.ErrNotFound
		}
		return offer.Offer{}, fmt.Errorf("find offer: %w", err)
	}
	return o, nil
}

func (s *Postgres) FindByID(ctx context.Context, id int64) (offer.Offer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, candidate_name, email, position, salary::text,
		        COALESCE(token, ''), status::text, created_at
		 FROM offers
		 WHERE id = $1`,
		id,
	)
	o, err := scanOffer(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return offer.Offer{}, offer.ErrNotFound
		}
		return offer.Offer{}, fmt.Errorf("find offer %d: %w", id, err)
	}
	return o, nil
}

func (s *Postgres) ListAll(ctx context.Context) ([]offer.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, candidate_name, email, position, salary::text,
		        COALESCE(token, ''), status::text, created_at
		 FROM offers
		 ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list offers query: %w", err)
	}
	defer rows.Close()

	offers := make([]offer.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list offers scan: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (s *Postgres) TokenIssued(ctx context.Context, token string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM offers WHERE token_digest = $1)`,
		offer.TokenDigest(token),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("token issued: %w", err)
	}
	return ok, nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// scanOffer reads the common column list; salary and status arrive as text.
func scanOffer(scan func(dest ...any) error) (offer.Offer, error) {
	var (
		o              offer.Offer
		salary, status string
	)
	if err := scan(&o.ID, &o.CandidateName, &o.Email, &o.Position, &salary,
		&o.Token, &status, &o.CreatedAt); err != nil {
		return offer.Offer{}, err
	}
	return finishOffer(o, salary, status)
}

func finishOffer(o offer.Offer, salary, status string) (offer.Offer, error) {
	var err error
	if o.Salary, err = decimal.NewFromString(salary); err != nil {
		return offer.Offer{}, fmt.Errorf("offer %d salary %q: %w", o.ID, salary, err)
	}
	if o.Status, err = offer.ParseStatus(status); err != nil {
		return offer.Offer{}, fmt.Errorf("offer %d: %w", o.ID, err)
	}
	return o, nil
}
