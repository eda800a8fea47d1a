package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/libris-io/libris/libstore"
)

// Migrate creates all tables and indexes if they do not exist yet. The DDL
// is idempotent, so running it on every startup is safe. Table names honor
// the configured prefix.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range s.schemaStatements() {
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			s.logError(ctx, logMsgExecFailed, err, logAttrQuery, ddl)
			return errors.Join(libstore.ErrExecFailed, err)
		}
	}

	return nil
}

func (s *Store) schemaStatements() []string {
	users := s.table(tableUsers)
	books := s.table(tableBooks)
	borrows := s.table(tableBorrows)
	reservations := s.table(tableReservations)
	categories := s.table(tableCategories)
	genres := s.table(tableGenres)
	reviews := s.table(tableReviews)

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, categories),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, genres),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			category_id TEXT NOT NULL REFERENCES %s (id),
			genre_id TEXT NOT NULL REFERENCES %s (id),
			publication_year INTEGER NOT NULL,
			total_copies INTEGER NOT NULL CHECK (total_copies >= 1),
			copies_available INTEGER NOT NULL,
			is_reserved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (copies_available >= 0 AND copies_available <= total_copies)
		)`, books, categories, genres),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES %s (id),
			book_id TEXT NOT NULL REFERENCES %s (id),
			borrow_date TIMESTAMPTZ NOT NULL,
			due_date TIMESTAMPTZ NOT NULL,
			return_date TIMESTAMPTZ,
			is_returned BOOLEAN NOT NULL DEFAULT FALSE,
			late_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, borrows, users, books),

		// At most one active borrow per user and book.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_active_uq
			ON %s (user_id, book_id) WHERE is_returned = FALSE`, borrows, borrows),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_idx
			ON %s (user_id, created_at DESC)`, borrows, borrows),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES %s (id),
			book_id TEXT NOT NULL REFERENCES %s (id),
			reservation_date TIMESTAMPTZ NOT NULL,
			expiration_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, reservations, users, books),

		// At most one pending reservation per user and book.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_pending_uq
			ON %s (user_id, book_id) WHERE status = 'pending'`, reservations, reservations),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expiry_idx
			ON %s (expiration_date) WHERE status = 'pending'`, reservations, reservations),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES %s (id),
			book_id TEXT NOT NULL REFERENCES %s (id),
			review TEXT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, reviews, users, books),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_book_idx
			ON %s (book_id, created_at DESC)`, reviews, reviews),
	}
}
