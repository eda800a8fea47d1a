// Package memstore provides an in-memory implementation of the persistence
// operations, mirroring the semantics of the Postgres engine: guarded
// counter updates, guarded state transitions, nil results for missing rows.
// It backs the handler and transport tests and is not meant for production.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
)

// Store keeps all records in maps behind one mutex. The mutex makes every
// operation atomic, which is exactly what the guarded SQL statements give
// the Postgres engine.
type Store struct {
	mu sync.Mutex

	users        map[uuid.UUID]libstore.User
	books        map[uuid.UUID]libstore.Book
	borrows      map[uuid.UUID]libstore.Borrow
	reservations map[uuid.UUID]libstore.Reservation
	categories   map[uuid.UUID]libstore.Category
	genres       map[uuid.UUID]libstore.Genre
	reviews      map[uuid.UUID]libstore.Review

	// Failure injection for tests. Errors are returned once set; hooks run
	// outside the mutex so they can issue competing store calls.
	InsertBorrowErr      error
	InsertReservationErr error
	IncrementCopiesErr   error
	BeforeDecrement      func()
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]libstore.User),
		books:        make(map[uuid.UUID]libstore.Book),
		borrows:      make(map[uuid.UUID]libstore.Borrow),
		reservations: make(map[uuid.UUID]libstore.Reservation),
		categories:   make(map[uuid.UUID]libstore.Category),
		genres:       make(map[uuid.UUID]libstore.Genre),
		reviews:      make(map[uuid.UUID]libstore.Review),
	}
}

// ---- users ----

// InsertUser stores a user record.
func (s *Store) InsertUser(_ context.Context, user libstore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user

	return nil
}

// FindUserByID returns the user with the given ID, or nil.
func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (*libstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		return &user, nil
	}

	return nil, nil
}

// FindUserByEmail returns the user with the given email, or nil.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*libstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}

	return nil, nil
}

// ListUsers returns a page of users, newest first.
func (s *Store) ListUsers(_ context.Context, page libstore.Page) ([]libstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]libstore.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	return paginateUsers(users, page), nil
}

// UpdateUser overwrites a user and returns the updated record, or nil.
func (s *Store) UpdateUser(_ context.Context, user libstore.User) (*libstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, nil
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user

	return &user, nil
}

// DeleteUser removes a user and reports whether it existed.
func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}

	delete(s.users, id)

	return true, nil
}

// ---- books ----

// InsertBook stores a book record.
func (s *Store) InsertBook(_ context.Context, book libstore.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books[book.ID] = book

	return nil
}

// FindBookByID returns the book with the given ID, or nil.
func (s *Store) FindBookByID(_ context.Context, id uuid.UUID) (*libstore.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if book, ok := s.books[id]; ok {
		return &book, nil
	}

	return nil, nil
}

// ListBooks returns a page of books, newest first.
func (s *Store) ListBooks(_ context.Context, page libstore.Page) ([]libstore.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]libstore.Book, 0, len(s.books))
	for _, book := range s.books {
		books = append(books, book)
	}

	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) })

	return paginateBooks(books, page), nil
}

// UpdateBook overwrites a book and returns the updated record, or nil.
func (s *Store) UpdateBook(_ context.Context, book libstore.Book) (*libstore.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.books[book.ID]
	if !ok {
		return nil, nil
	}

	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = time.Now().UTC()
	s.books[book.ID] = book

	return &book, nil
}

// DeleteBook removes a book and reports whether it existed.
func (s *Store) DeleteBook(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return false, nil
	}

	delete(s.books, id)

	return true, nil
}

// ConditionalDecrementCopies decrements the available counter if and only if
// it is positive, atomically under the store mutex.
func (s *Store) ConditionalDecrementCopies(_ context.Context, bookID uuid.UUID) (*libstore.Book, error) {
	if s.BeforeDecrement != nil {
		s.BeforeDecrement()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok || book.CopiesAvailable <= 0 {
		return nil, libstore.ErrNoAvailableCopies
	}

	book.CopiesAvailable--
	book.UpdatedAt = time.Now().UTC()
	s.books[bookID] = book

	return &book, nil
}

// IncrementCopies increments the available counter, clamped at total copies.
func (s *Store) IncrementCopies(_ context.Context, bookID uuid.UUID) (*libstore.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IncrementCopiesErr != nil {
		return nil, s.IncrementCopiesErr
	}

	book, ok := s.books[bookID]
	if !ok {
		return nil, nil
	}

	if book.CopiesAvailable < book.TotalCopies {
		book.CopiesAvailable++
	}

	book.UpdatedAt = time.Now().UTC()
	s.books[bookID] = book

	return &book, nil
}

// SetBookReserved flips the coarse reservation flag, or returns nil.
func (s *Store) SetBookReserved(_ context.Context, bookID uuid.UUID, reserved bool) (*libstore.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, nil
	}

	book.IsReserved = reserved
	book.UpdatedAt = time.Now().UTC()
	s.books[bookID] = book

	return &book, nil
}

// ---- borrows ----

// InsertBorrow stores a borrowing record, or fails with InsertBorrowErr.
func (s *Store) InsertBorrow(_ context.Context, borrow libstore.Borrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertBorrowErr != nil {
		return s.InsertBorrowErr
	}

	s.borrows[borrow.ID] = borrow

	return nil
}

// FindBorrowByID returns the borrowing with the given ID, or nil.
func (s *Store) FindBorrowByID(_ context.Context, id uuid.UUID) (*libstore.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if borrow, ok := s.borrows[id]; ok {
		return &borrow, nil
	}

	return nil, nil
}

// FindActiveBorrow returns the active borrowing for the pair, or nil.
func (s *Store) FindActiveBorrow(_ context.Context, userID, bookID uuid.UUID) (*libstore.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, borrow := range s.borrows {
		if borrow.UserID == userID && borrow.BookID == bookID && !borrow.IsReturned {
			return &borrow, nil
		}
	}

	return nil, nil
}

// CountActiveBorrows counts the user's unreturned borrowings.
func (s *Store) CountActiveBorrows(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, borrow := range s.borrows {
		if borrow.UserID == userID && !borrow.IsReturned {
			count++
		}
	}

	return count, nil
}

// ListBorrows returns a page of all borrowings, newest first.
func (s *Store) ListBorrows(_ context.Context, page libstore.Page) ([]libstore.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return paginateBorrows(s.sortedBorrows(func(libstore.Borrow) bool { return true }), page), nil
}

// ListBorrowsByUser returns a page of one user's borrowings, newest first.
func (s *Store) ListBorrowsByUser(_ context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return paginateBorrows(s.sortedBorrows(func(b libstore.Borrow) bool { return b.UserID == userID }), page), nil
}

// MarkBorrowReturned closes a borrowing if it is still open, atomically
// under the store mutex. Returns nil when missing or already returned.
func (s *Store) MarkBorrowReturned(_ context.Context, id uuid.UUID, returnDate time.Time, lateFee float64) (*libstore.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	borrow, ok := s.borrows[id]
	if !ok || borrow.IsReturned {
		return nil, nil
	}

	borrow.IsReturned = true
	borrow.ReturnDate = &returnDate
	borrow.LateFee = lateFee
	borrow.UpdatedAt = time.Now().UTC()
	s.borrows[id] = borrow

	return &borrow, nil
}

// DeleteBorrow removes a borrowing and reports whether it existed.
func (s *Store) DeleteBorrow(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.borrows[id]; !ok {
		return false, nil
	}

	delete(s.borrows, id)

	return true, nil
}

// ---- reservations ----

// InsertReservation stores a reservation, or fails with InsertReservationErr.
func (s *Store) InsertReservation(_ context.Context, reservation libstore.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertReservationErr != nil {
		return s.InsertReservationErr
	}

	s.reservations[reservation.ID] = reservation

	return nil
}

// FindReservationByID returns the reservation with the given ID, or nil.
func (s *Store) FindReservationByID(_ context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reservation, ok := s.reservations[id]; ok {
		return &reservation, nil
	}

	return nil, nil
}

// FindPendingReservation returns the pending reservation for the pair, or nil.
func (s *Store) FindPendingReservation(_ context.Context, userID, bookID uuid.UUID) (*libstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, reservation := range s.reservations {
		if reservation.UserID == userID && reservation.BookID == bookID &&
			reservation.Status == libstore.ReservationPending {
			return &reservation, nil
		}
	}

	return nil, nil
}

// CountPendingReservations counts the pending reservations on a book.
func (s *Store) CountPendingReservations(_ context.Context, bookID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, reservation := range s.reservations {
		if reservation.BookID == bookID && reservation.Status == libstore.ReservationPending {
			count++
		}
	}

	return count, nil
}

// ListReservations returns a page of all reservations, newest first.
func (s *Store) ListReservations(_ context.Context, page libstore.Page) ([]libstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return paginateReservations(s.sortedReservations(func(libstore.Reservation) bool { return true }), page), nil
}

// ListReservationsByUser returns a page of one user's reservations, newest first.
func (s *Store) ListReservationsByUser(_ context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return paginateReservations(s.sortedReservations(func(r libstore.Reservation) bool { return r.UserID == userID }), page), nil
}

// CancelReservation transitions pending -> canceled, or returns nil.
func (s *Store) CancelReservation(_ context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	return s.transition(id, libstore.ReservationCanceled)
}

// FulfillReservation transitions pending -> fulfilled, or returns nil.
func (s *Store) FulfillReservation(_ context.Context, id uuid.UUID) (*libstore.Reservation, error) {
	return s.transition(id, libstore.ReservationFulfilled)
}

func (s *Store) transition(id uuid.UUID, target libstore.ReservationStatus) (*libstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok || reservation.Status != libstore.ReservationPending {
		return nil, nil
	}

	reservation.Status = target
	reservation.UpdatedAt = time.Now().UTC()
	if target == libstore.ReservationCanceled {
		reservation.ExpirationDate = reservation.UpdatedAt
	}
	s.reservations[id] = reservation

	return &reservation, nil
}

// ExpirePendingReservations cancels pending reservations past their
// expiration date and returns how many were affected.
func (s *Store) ExpirePendingReservations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64

	for id, reservation := range s.reservations {
		if reservation.Status == libstore.ReservationPending && !reservation.ExpirationDate.After(now) {
			reservation.Status = libstore.ReservationCanceled
			reservation.UpdatedAt = time.Now().UTC()
			s.reservations[id] = reservation
			expired++
		}
	}

	return expired, nil
}

// DeleteReservation removes a reservation and reports whether it existed.
func (s *Store) DeleteReservation(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return false, nil
	}

	delete(s.reservations, id)

	return true, nil
}

// ---- categories and genres ----

// InsertCategory stores a category record.
func (s *Store) InsertCategory(_ context.Context, category libstore.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[category.ID] = category

	return nil
}

// FindCategoryByID returns the category with the given ID, or nil.
func (s *Store) FindCategoryByID(_ context.Context, id uuid.UUID) (*libstore.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category, ok := s.categories[id]; ok {
		return &category, nil
	}

	return nil, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(_ context.Context) ([]libstore.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]libstore.Category, 0, len(s.categories))
	for _, category := range s.categories {
		categories = append(categories, category)
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	return categories, nil
}

// UpdateCategory overwrites a category and returns the updated record, or nil.
func (s *Store) UpdateCategory(_ context.Context, category libstore.Category) (*libstore.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, nil
	}

	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = time.Now().UTC()
	s.categories[category.ID] = category

	return &category, nil
}

// DeleteCategory removes a category and reports whether it existed.
func (s *Store) DeleteCategory(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return false, nil
	}

	delete(s.categories, id)

	return true, nil
}

// InsertGenre stores a genre record.
func (s *Store) InsertGenre(_ context.Context, genre libstore.Genre) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genres[genre.ID] = genre

	return nil
}

// FindGenreByID returns the genre with the given ID, or nil.
func (s *Store) FindGenreByID(_ context.Context, id uuid.UUID) (*libstore.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if genre, ok := s.genres[id]; ok {
		return &genre, nil
	}

	return nil, nil
}

// ListGenres returns all genres ordered by name.
func (s *Store) ListGenres(_ context.Context) ([]libstore.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	genres := make([]libstore.Genre, 0, len(s.genres))
	for _, genre := range s.genres {
		genres = append(genres, genre)
	}

	sort.Slice(genres, func(i, j int) bool { return genres[i].Name < genres[j].Name })

	return genres, nil
}

// UpdateGenre overwrites a genre and returns the updated record, or nil.
func (s *Store) UpdateGenre(_ context.Context, genre libstore.Genre) (*libstore.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.genres[genre.ID]
	if !ok {
		return nil, nil
	}

	genre.CreatedAt = existing.CreatedAt
	genre.UpdatedAt = time.Now().UTC()
	s.genres[genre.ID] = genre

	return &genre, nil
}

// DeleteGenre removes a genre and reports whether it existed.
func (s *Store) DeleteGenre(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.genres[id]; !ok {
		return false, nil
	}

	delete(s.genres, id)

	return true, nil
}

// ---- reviews ----

// InsertReview stores a review record.
func (s *Store) InsertReview(_ context.Context, review libstore.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews[review.ID] = review

	return nil
}

// FindReviewByID returns the review with the given ID, or nil.
func (s *Store) FindReviewByID(_ context.Context, id uuid.UUID) (*libstore.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if review, ok := s.reviews[id]; ok {
		return &review, nil
	}

	return nil, nil
}

// ListReviewsByBook returns a page of one book's reviews, newest first.
func (s *Store) ListReviewsByBook(_ context.Context, bookID uuid.UUID, page libstore.Page) ([]libstore.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reviews := make([]libstore.Review, 0)
	for _, review := range s.reviews {
		if review.BookID == bookID {
			reviews = append(reviews, review)
		}
	}

	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })

	return paginateReviews(reviews, page), nil
}

// UpdateReview overwrites a review and returns the updated record, or nil.
func (s *Store) UpdateReview(_ context.Context, review libstore.Review) (*libstore.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reviews[review.ID]
	if !ok {
		return nil, nil
	}

	review.CreatedAt = existing.CreatedAt
	review.UpdatedAt = time.Now().UTC()
	s.reviews[review.ID] = review

	return &review, nil
}

// DeleteReview removes a review and reports whether it existed.
func (s *Store) DeleteReview(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return false, nil
	}

	delete(s.reviews, id)

	return true, nil
}

// ---- helpers ----

func (s *Store) sortedBorrows(keep func(libstore.Borrow) bool) []libstore.Borrow {
	borrows := make([]libstore.Borrow, 0)
	for _, borrow := range s.borrows {
		if keep(borrow) {
			borrows = append(borrows, borrow)
		}
	}

	sort.Slice(borrows, func(i, j int) bool { return borrows[i].CreatedAt.After(borrows[j].CreatedAt) })

	return borrows
}

func (s *Store) sortedReservations(keep func(libstore.Reservation) bool) []libstore.Reservation {
	reservations := make([]libstore.Reservation, 0)
	for _, reservation := range s.reservations {
		if keep(reservation) {
			reservations = append(reservations, reservation)
		}
	}

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
	})

	return reservations
}

func pageBounds(length int, page libstore.Page) (int, int) {
	page = page.Normalize()

	start := page.Offset
	if start > length {
		start = length
	}

	end := start + page.Limit
	if end > length {
		end = length
	}

	return start, end
}

func paginateUsers(users []libstore.User, page libstore.Page) []libstore.User {
	start, end := pageBounds(len(users), page)
	return users[start:end]
}

func paginateBooks(books []libstore.Book, page libstore.Page) []libstore.Book {
	start, end := pageBounds(len(books), page)
	return books[start:end]
}

func paginateBorrows(borrows []libstore.Borrow, page libstore.Page) []libstore.Borrow {
	start, end := pageBounds(len(borrows), page)
	return borrows[start:end]
}

func paginateReservations(reservations []libstore.Reservation, page libstore.Page) []libstore.Reservation {
	start, end := pageBounds(len(reservations), page)
	return reservations[start:end]
}

func paginateReviews(reviews []libstore.Review, page libstore.Page) []libstore.Review {
	start, end := pageBounds(len(reviews), page)
	return reviews[start:end]
}
