package libstore

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of a user account.
type Role string

// The known user roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered library member or administrator.
// PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Book is a catalog entry. CopiesAvailable is the single contended counter
// of the system: it is only mutated through ConditionalDecrementCopies and
// IncrementCopies, and 0 <= CopiesAvailable <= TotalCopies holds at all times.
type Book struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CategoryID      uuid.UUID `json:"categoryId"`
	GenreID         uuid.UUID `json:"genreId"`
	PublicationYear int       `json:"publicationYear"`
	TotalCopies     int       `json:"totalCopies"`
	CopiesAvailable int       `json:"copiesAvailable"`
	IsReserved      bool      `json:"isReserved"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Borrow is one lending of one book copy to one user. Records are append
// mostly: a Borrow is written once and mutated exactly once, by the return
// operation. At most one active (IsReturned == false) Borrow exists per
// (UserID, BookID) pair.
type Borrow struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	BookID     uuid.UUID  `json:"bookId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	IsReturned bool       `json:"isReturned"`
	LateFee    float64    `json:"lateFee"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsActive reports whether the borrow has not been returned yet.
func (b Borrow) IsActive() bool {
	return !b.IsReturned
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

// Reservation lifecycle: pending is the only initial state, fulfilled and
// canceled are terminal.
const (
	ReservationPending   ReservationStatus = "pending"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCanceled  ReservationStatus = "canceled"
)

// IsValid reports whether s is one of the known reservation statuses.
func (s ReservationStatus) IsValid() bool {
	return s == ReservationPending || s == ReservationFulfilled || s == ReservationCanceled
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationFulfilled || s == ReservationCanceled
}

// Reservation holds a book for a user. At most one pending reservation
// exists per (UserID, BookID) pair. Reserving does not reduce
// CopiesAvailable; only borrowing does.
type Reservation struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	BookID          uuid.UUID         `json:"bookId"`
	ReservationDate time.Time         `json:"reservationDate"`
	ExpirationDate  time.Time         `json:"expirationDate"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Category groups books, e.g. "Non-fiction".
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Genre classifies books, e.g. "Science Fiction".
type Genre struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Review is a user's rating (1..5) and review text for a book.
type Review struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	BookID    uuid.UUID `json:"bookId"`
	Review    string    `json:"review"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
