package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"offerdesk/offer-service/internal/offer"
)

// SQLite is a single-file offer.Store for single-node deployments and tests.
// One open connection makes SQLite the single writer, so the conditional
// update is serialized like a row lock would serialize it.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Insert(ctx context.Context, o offer.NewOffer) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offers (candidate_name, email, position, salary, token, token_digest, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?)`,
		o.CandidateName, o.Email, o.Position, o.Salary.String(), o.Token,
		offer.TokenDigest(o.Token), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert offer: %w", ErrDuplicateToken)
		}
		return 0, fmt.Errorf("insert offer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert offer id: %w", err)
	}
	return id, nil
}

func (s *SQLite) ConditionalTransition(ctx context.Context, token string, to offer.Status) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers
		 SET status = ?, token = NULL
		 WHERE token = ? AND status = 'PENDING'`,
		string(to), token,
	)
	if err != nil {
		return 0, fmt.Errorf("transition offer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLite) FindByToken(ctx context.Context, token string) (offer.Offer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, candidate_name, email, position, salary, COALESCE(token, ''), status, created_at
		 FROM offers
		 WHERE token = ?`,
		token,
	)
	o, err := scanSQLiteOffer(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return offer.Offer{}, offer.ErrNotFound
		}
		return offer.Offer{}, fmt.Errorf("find offer: %w", err)
	}
	return o, nil
}

func (s *SQLite) FindByID(ctx context.Context, id int64) (offer.Offer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, candidate_name, email, position, salary, COALESCE(token, ''), status, created_at
		 FROM offers
		 WHERE id = ?`,
		id,
	)
	o, err := scanSQLiteOffer(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return offer.Offer{}, offer.ErrNotFound
		}
		return offer.Offer{}, fmt.Errorf("find offer %d: %w", id, err)
	}
	return o, nil
}

func (s *SQLite) ListAll(ctx context.Context) ([]offer.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, candidate_name, email, position, salary, COALESCE(token, ''), status, created_at
		 FROM offers
		 ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list offers query: %w", err)
	}
	defer rows.Close()

	offers := make([]offer.Offer, 0)
	for rows.Next() {
		o, err := scanSQLiteOffer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list offers scan: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (s *SQLite) TokenIssued(ctx context.Context, token string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE token_digest = ?`,
		offer.TokenDigest(token),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("token issued: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func scanSQLiteOffer(scan func(dest ...any) error) (offer.Offer, error) {
	var (
		o              offer.Offer
		salary, status string
		createdMillis  int64
	)
	if err := scan(&o.ID, &o.CandidateName, &o.Email, &o.Position, &salary,
		&o.Token, &status, &createdMillis); err != nil {
		return offer.Offer{}, err
	}
	o.CreatedAt = time.UnixMilli(createdMillis).UTC()
	return finishOffer(o, salary, status)
}

// isUniqueViolation reports whether err is SQLite refusing a duplicate key.
// CHECK and NOT NULL failures share the primary SQLITE_CONSTRAINT code, so
// only the extended codes are matched.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
