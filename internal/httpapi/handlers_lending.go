package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/features/command/borrowbook"
	"github.com/libris-io/libris/internal/features/command/cancelreservation"
	"github.com/libris-io/libris/internal/features/command/reservebook"
	"github.com/libris-io/libris/internal/features/command/returnbook"
	"github.com/libris-io/libris/internal/features/query/borrowinghistory"
	"github.com/libris-io/libris/internal/features/query/reservationsbyuser"
	"github.com/libris-io/libris/libstore"
)

type lendingRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type borrowRequest struct {
	UserID     uuid.UUID  `json:"userId"`
	BorrowDate *time.Time `json:"borrowDate,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, core.ErrInvalidInput)
		return
	}

	command := borrowbook.BuildCommand(req.UserID, bookID, time.Now().UTC())
	command.BorrowDate = req.BorrowDate
	command.DueDate = req.DueDate

	borrow, err := s.borrowHandler.Handle(r.Context(), command)
	if s.metrics != nil {
		s.metrics.BorrowsTotal.WithLabelValues(lendingResult(err)).Inc()
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, borrow)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	borrowID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req lendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, core.ErrInvalidInput)
		return
	}

	command := returnbook.BuildCommand(borrowID, req.UserID, time.Now().UTC())

	borrow, err := s.returnHandler.Handle(r.Context(), command)
	if s.metrics != nil {
		s.metrics.ReturnsTotal.WithLabelValues(lendingResult(err)).Inc()
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, borrow)
}

type reserveRequest struct {
	UserID uuid.UUID                  `json:"userId"`
	Status libstore.ReservationStatus `json:"status,omitempty"`
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, core.ErrInvalidInput)
		return
	}

	command := reservebook.BuildCommand(req.UserID, bookID, time.Now().UTC())
	command.RequestedStatus = req.Status

	reservation, err := s.reserveHandler.Handle(r.Context(), command)
	if s.metrics != nil {
		s.metrics.ReservationsTotal.WithLabelValues(lendingResult(err)).Inc()
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req lendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, core.ErrInvalidInput)
		return
	}

	command := cancelreservation.BuildCommand(reservationID, req.UserID, time.Now().UTC())

	reservation, err := s.cancelHandler.Handle(r.Context(), command)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) handleListBorrows(w http.ResponseWriter, r *http.Request) {
	borrows, err := s.store.ListBorrows(r.Context(), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, borrows)
}

func (s *Server) handleGetBorrow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	borrow, err := s.store.FindBorrowByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if borrow == nil {
		writeError(w, core.ErrBorrowNotFound)
		return
	}

	writeJSON(w, http.StatusOK, borrow)
}

func (s *Server) handleDeleteBorrow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteBorrow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrBorrowNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := s.store.ListReservations(r.Context(), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservations)
}

type patchReservationRequest struct {
	Status libstore.ReservationStatus `json:"status"`
}

// handlePatchReservation transitions a pending reservation to a terminal
// status, e.g. a front-desk system marking a reservation fulfilled when the
// copy is picked up.
func (s *Server) handlePatchReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req patchReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var reservation *libstore.Reservation
	switch req.Status {
	case libstore.ReservationFulfilled:
		reservation, err = s.store.FulfillReservation(r.Context(), id)
	case libstore.ReservationCanceled:
		reservation, err = s.store.CancelReservation(r.Context(), id)
	default:
		writeError(w, core.ErrInvalidReservationStatus)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if reservation == nil {
		existing, findErr := s.store.FindReservationByID(r.Context(), id)
		if findErr != nil {
			writeError(w, findErr)
			return
		}
		if existing == nil {
			writeError(w, core.ErrReservationNotFound)
			return
		}

		writeError(w, core.ErrReservationNotPending)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	reservation, err := s.store.FindReservationByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if reservation == nil {
		writeError(w, core.ErrReservationNotFound)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) handleBorrowingHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	history, err := s.historyHandler.Handle(r.Context(), borrowinghistory.BuildQuery(userID, pageFrom(r)))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleReservationsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	reservations, err := s.reservationsHandler.Handle(r.Context(), reservationsbyuser.BuildQuery(userID, pageFrom(r)))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservations)
}

// lendingResult buckets a command outcome for the attempt counters.
func lendingResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case core.KindOf(err) == core.KindInternal:
		return "error"
	default:
		return "rejected"
	}
}
