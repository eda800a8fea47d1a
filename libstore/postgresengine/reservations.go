package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colReservationUserID     = "user_id"
	colReservationBookID     = "book_id"
	colReservationDate       = "reservation_date"
	colReservationExpiration = "expiration_date"
	colReservationStatus     = "status"

	opInsertReservation         = "insert_reservation"
	opFindReservation           = "find_reservation"
	opFindPendingReservation    = "find_pending_reservation"
	opCountPendingReservations  = "count_pending_reservations"
	opListReservations          = "list_reservations"
	opListReservationsByUser    = "list_reservations_by_user"
	opCancelReservation         = "cancel_reservation"
	opFulfillReservation        = "fulfill_reservation"
	opDeleteReservation         = "delete_reservation"
	opExpirePendingReservations = "expire_pending_reservations"
)

var reservationColumns = []any{
	colID, colReservationUserID, colReservationBookID, colReservationDate,
	colReservationExpiration, colReservationStatus, colCreatedAt, colUpdatedAt,
}

func scanReservation(rows adapters.DBRows) (libstore.Reservation, error) {
	var reservation libstore.Reservation
	var idStr, userStr, bookStr, statusStr string

	scanErr := rows.Scan(
		&idStr, &userStr, &bookStr, &reservation.ReservationDate,
		&reservation.ExpirationDate, &statusStr,
		&reservation.CreatedAt, &reservation.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Reservation{}, scanErr
	}

	var parseErr error
	if reservation.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Reservation{}, parseErr
	}
	if reservation.UserID, parseErr = uuid.Parse(userStr); parseErr != nil {
		return libstore.Reservation{}, parseErr
	}
	if reservation.BookID, parseErr = uuid.Parse(bookStr); parseErr != nil {
		return libstore.Reservation{}, parseErr
	}

	reservation.Status = libstore.ReservationStatus(statusStr)

	return reservation, nil
}

// InsertReservation persists a new reservation as provided.
func (s *Store) InsertReservation(ctx context.Context, reservation libstore.Reservation) error {
	stmt := s.builder().
		Insert(s.table(tableReservations)).
		Rows(goqu.Record{
			colID:                    reservation.ID.String(),
			colReservationUserID:     reservation.UserID.String(),
			colReservationBookID:     reservation.BookID.String(),
			colReservationDate:       libstore.ToStoredTime(reservation.ReservationDate),
			colReservationExpiration: libstore.ToStoredTime(reservation.ExpirationDate),
			colReservationStatus:     string(reservation.Status),
			colCreatedAt:             libstore.ToStoredTime(reservation.CreatedAt),
			colUpdatedAt:             libstore.ToStoredTime(reservation.UpdatedAt),
		})

	_, err := s.runExec(ctx, opInsertReservation, stmt)

	return err
}

// FindReservationByID returns the reservation with the given ID, or nil.
func (s *Store) FindReservationByID(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	stmt := s.builder().
		From(s.table(tableReservations)).
		Select(reservationColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return s.queryOneReservation(ctx, opFindReservation, stmt)
}

// FindPendingReservation returns the pending reservation of the given book by
// the given user, or nil. At most one such record exists.
func (s *Store) FindPendingReservation(ctx context.Context, userID, bookID uuid.UUID) (*libstore.Reservation, error) {
	stmt := s.builder().
		From(s.table(tableReservations)).
		Select(reservationColumns...).
		Where(
			goqu.C(colReservationUserID).Eq(userID.String()),
			goqu.C(colReservationBookID).Eq(bookID.String()),
			goqu.C(colReservationStatus).Eq(string(libstore.ReservationPending)),
		)

	return s.queryOneReservation(ctx, opFindPendingReservation, stmt)
}

// CountPendingReservations counts the pending reservations on a book.
func (s *Store) CountPendingReservations(ctx context.Context, bookID uuid.UUID) (int64, error) {
	stmt := s.builder().
		From(s.table(tableReservations)).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colReservationBookID).Eq(bookID.String()),
			goqu.C(colReservationStatus).Eq(string(libstore.ReservationPending)),
		)

	rows, err := s.runQuery(ctx, opCountPendingReservations, stmt)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	var count int64

	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			return 0, s.scanError(ctx, opCountPendingReservations, scanErr)
		}
	}

	return count, nil
}

// ListReservations returns a page of all reservations, newest first.
func (s *Store) ListReservations(ctx context.Context, page libstore.Page) ([]libstore.Reservation, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableReservations)).
		Select(reservationColumns...).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	return s.queryReservations(ctx, opListReservations, stmt)
}

// ListReservationsByUser returns a page of one user's reservations, newest first.
func (s *Store) ListReservationsByUser(ctx context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Reservation, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableReservations)).
		Select(reservationColumns...).
		Where(goqu.C(colReservationUserID).Eq(userID.String())).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	return s.queryReservations(ctx, opListReservationsByUser, stmt)
}

// CancelReservation moves a reservation from pending to canceled in a single
// guarded update, so a reservation that was concurrently fulfilled or already
// canceled stays untouched. Returns the updated record, or nil when the
// reservation does not exist or is no longer pending.
func (s *Store) CancelReservation(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	return s.transitionReservation(ctx, opCancelReservation, id, libstore.ReservationCanceled)
}

// FulfillReservation moves a reservation from pending to fulfilled in a
// single guarded update. Returns the updated record, or nil when the
// reservation does not exist or is no longer pending.
func (s *Store) FulfillReservation(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	return s.transitionReservation(ctx, opFulfillReservation, id, libstore.ReservationFulfilled)
}

func (s *Store) transitionReservation(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	target libstore.ReservationStatus,
) (*libstore.Reservation, error) {

	record := goqu.Record{
		colReservationStatus: string(target),
		colUpdatedAt:         goqu.L("now()"),
	}
	// A canceled hold ends immediately, whatever its original expiry was.
	if target == libstore.ReservationCanceled {
		record[colReservationExpiration] = goqu.L("now()")
	}

	stmt := s.builder().
		Update(s.table(tableReservations)).
		Set(record).
		Where(
			goqu.C(colID).Eq(id.String()),
			goqu.C(colReservationStatus).Eq(string(libstore.ReservationPending)),
		).
		Returning(reservationColumns...)

	return s.queryOneReservation(ctx, operation, stmt)
}

// ExpirePendingReservations cancels every pending reservation whose
// expiration date has passed and returns how many were affected. Intended to
// be called periodically by the expiry monitor.
func (s *Store) ExpirePendingReservations(ctx context.Context, now time.Time) (int64, error) {
	stmt := s.builder().
		Update(s.table(tableReservations)).
		Set(goqu.Record{
			colReservationStatus: string(libstore.ReservationCanceled),
			colUpdatedAt:         goqu.L("now()"),
		}).
		Where(
			goqu.C(colReservationStatus).Eq(string(libstore.ReservationPending)),
			goqu.C(colReservationExpiration).Lte(libstore.ToStoredTime(now)),
		)

	return s.runExec(ctx, opExpirePendingReservations, stmt)
}

// DeleteReservation removes a reservation (administrative CRUD) and reports
// whether it existed.
func (s *Store) DeleteReservation(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableReservations)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteReservation, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (s *Store) queryOneReservation(ctx context.Context, operation string, stmt sqlBuilder) (*libstore.Reservation, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	reservation, scanErr := scanReservation(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, operation, scanErr)
	}

	return &reservation, nil
}

func (s *Store) queryReservations(ctx context.Context, operation string, stmt sqlBuilder) ([]libstore.Reservation, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	reservations := make([]libstore.Reservation, 0)

	for rows.Next() {
		reservation, scanErr := scanReservation(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, operation, scanErr)
		}

		reservations = append(reservations, reservation)
	}

	return reservations, nil
}
