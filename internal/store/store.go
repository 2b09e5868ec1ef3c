// Package store provides offer.Store implementations: PostgreSQL for
// production, SQLite for single-node runs, and an in-memory fake for tests.
//
// Every implementation applies the candidate's decision with one conditional
// statement of the form
//
//	UPDATE offers SET status = ?, token = NULL
//	WHERE token = ? AND status = 'PENDING'
//
// so the PENDING check and the write can never be split by a concurrent
// request.
package store

import (
	"errors"

	"offerdesk/offer-service/internal/offer"
)

// ErrDuplicateToken is returned by Insert when the token (or its digest)
// already exists.
var ErrDuplicateToken = errors.New("duplicate offer token")

var (
	_ offer.Store = (*Memory)(nil)
	_ offer.Store = (*Postgres)(nil)
	_ offer.Store = (*SQLite)(nil)
)
