package httpapi_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/httpapi"
	"github.com/libris-io/libris/internal/memstore"
	"github.com/libris-io/libris/internal/obs"
	"github.com/libris-io/libris/libstore"
)

var json = jsoniter.ConfigFastest

func newTestServer(opts ...httpapi.Option) (*memstore.Store, http.Handler) {
	store := memstore.NewStore()

	return store, httpapi.NewServer(store, opts...).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), v))
}

func seedUser(t *testing.T, store *memstore.Store) libstore.User {
	t.Helper()

	user := libstore.User{
		ID:       uuid.New(),
		UserName: "reader",
		Email:    uuid.NewString() + "@example.com",
		Role:     libstore.RoleUser,
	}
	require.NoError(t, store.InsertUser(context.Background(), user))

	return user
}

func seedBook(t *testing.T, store *memstore.Store, copies int) libstore.Book {
	t.Helper()

	book := libstore.Book{
		ID:              uuid.New(),
		Title:           "The Go Programming Language",
		Author:          "Donovan & Kernighan",
		TotalCopies:     copies,
		CopiesAvailable: copies,
	}
	require.NoError(t, store.InsertBook(context.Background(), book))

	return book
}

func Test_BorrowEndpoint_LendsAnAvailableCopy(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 2)

	// act
	recorder := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()})

	// assert
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var borrow libstore.Borrow
	decodeBody(t, recorder, &borrow)
	assert.Equal(t, user.ID, borrow.UserID)
	assert.Equal(t, book.ID, borrow.BookID)
	assert.False(t, borrow.IsReturned)

	updated, _ := store.FindBookByID(context.Background(), book.ID)
	assert.Equal(t, 1, updated.CopiesAvailable)
}

func Test_BorrowEndpoint_RejectsWhenNoCopiesAvailable(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	first := seedUser(t, store)
	second := seedUser(t, store)
	book := seedBook(t, store, 1)

	path := "/v1/books/" + book.ID.String() + "/borrow"
	require.Equal(t, http.StatusCreated,
		doJSON(t, handler, http.MethodPost, path, map[string]string{"userId": first.ID.String()}).Code)

	// act
	recorder := doJSON(t, handler, http.MethodPost, path,
		map[string]string{"userId": second.ID.String()})

	// assert
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, recorder.Body.String(), core.ErrBookUnavailable.Error())
}

func Test_BorrowEndpoint_RejectsOverTheBorrowLimit(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)

	for range core.DefaultBorrowLimit {
		book := seedBook(t, store, 1)
		recorder := doJSON(t, handler, http.MethodPost,
			"/v1/books/"+book.ID.String()+"/borrow",
			map[string]string{"userId": user.ID.String()})
		require.Equal(t, http.StatusCreated, recorder.Code)
	}

	oneTooMany := seedBook(t, store, 1)

	// act
	recorder := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+oneTooMany.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()})

	// assert
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func Test_BorrowEndpoint_RejectsUnknownUser(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	book := seedBook(t, store, 1)

	// act
	recorder := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": uuid.NewString()})

	// assert
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func Test_BorrowEndpoint_RejectsMalformedBookID(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)

	// act
	recorder := doJSON(t, handler, http.MethodPost, "/v1/books/not-a-uuid/borrow",
		map[string]string{"userId": user.ID.String()})

	// assert
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func Test_ReturnEndpoint_RefusesDoubleReturn(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	borrowRec := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()})
	require.Equal(t, http.StatusCreated, borrowRec.Code)

	var borrow libstore.Borrow
	decodeBody(t, borrowRec, &borrow)

	path := "/v1/borrowings/" + borrow.ID.String() + "/return"
	body := map[string]string{"userId": user.ID.String()}

	// act
	first := doJSON(t, handler, http.MethodPost, path, body)
	second := doJSON(t, handler, http.MethodPost, path, body)

	// assert
	assert.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, http.StatusConflict, second.Code)

	updated, _ := store.FindBookByID(context.Background(), book.ID)
	assert.Equal(t, 1, updated.CopiesAvailable, "the copy is released exactly once")
}

func Test_ReserveAndCancel_Flow(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	// act
	reserveRec := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/reserve",
		map[string]string{"userId": user.ID.String()})

	// assert
	require.Equal(t, http.StatusCreated, reserveRec.Code, reserveRec.Body.String())

	var reservation libstore.Reservation
	decodeBody(t, reserveRec, &reservation)
	assert.Equal(t, libstore.ReservationPending, reservation.Status)

	cancelPath := "/v1/reservations/" + reservation.ID.String() + "/cancel"
	body := map[string]string{"userId": user.ID.String()}

	cancelRec := doJSON(t, handler, http.MethodPost, cancelPath, body)
	require.Equal(t, http.StatusOK, cancelRec.Code, cancelRec.Body.String())

	var canceled libstore.Reservation
	decodeBody(t, cancelRec, &canceled)
	assert.Equal(t, libstore.ReservationCanceled, canceled.Status)

	again := doJSON(t, handler, http.MethodPost, cancelPath, body)
	assert.Equal(t, http.StatusConflict, again.Code)
}

func Test_PatchReservation_FulfillsPendingOnly(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	reserveRec := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/reserve",
		map[string]string{"userId": user.ID.String()})
	require.Equal(t, http.StatusCreated, reserveRec.Code)

	var reservation libstore.Reservation
	decodeBody(t, reserveRec, &reservation)

	path := "/v1/reservations/" + reservation.ID.String()

	// act
	fulfilled := doJSON(t, handler, http.MethodPatch, path,
		map[string]string{"status": "fulfilled"})
	again := doJSON(t, handler, http.MethodPatch, path,
		map[string]string{"status": "canceled"})
	bogus := doJSON(t, handler, http.MethodPatch, path,
		map[string]string{"status": "lost"})

	// assert
	require.Equal(t, http.StatusOK, fulfilled.Code, fulfilled.Body.String())

	var updated libstore.Reservation
	decodeBody(t, fulfilled, &updated)
	assert.Equal(t, libstore.ReservationFulfilled, updated.Status)

	assert.Equal(t, http.StatusConflict, again.Code, "terminal statuses never transition")
	assert.Equal(t, http.StatusBadRequest, bogus.Code)
}

func Test_BorrowingLedgerEndpoints_ListGetDelete(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	borrowRec := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()})
	require.Equal(t, http.StatusCreated, borrowRec.Code)

	var borrow libstore.Borrow
	decodeBody(t, borrowRec, &borrow)

	// act + assert
	list := doJSON(t, handler, http.MethodGet, "/v1/borrowings", nil)
	require.Equal(t, http.StatusOK, list.Code)

	var borrows []libstore.Borrow
	decodeBody(t, list, &borrows)
	require.Len(t, borrows, 1)

	get := doJSON(t, handler, http.MethodGet, "/v1/borrowings/"+borrow.ID.String(), nil)
	assert.Equal(t, http.StatusOK, get.Code)

	deleted := doJSON(t, handler, http.MethodDelete, "/v1/borrowings/"+borrow.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, deleted.Code)

	gone := doJSON(t, handler, http.MethodGet, "/v1/borrowings/"+borrow.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func Test_UserEndpoints_CreateRejectsDuplicateEmail(t *testing.T) {
	// arrange
	_, handler := newTestServer()
	body := map[string]string{
		"userName": "gopher",
		"email":    "gopher@example.com",
		"password": "correct horse battery staple",
	}

	// act
	first := doJSON(t, handler, http.MethodPost, "/v1/users", body)
	second := doJSON(t, handler, http.MethodPost, "/v1/users", body)

	// assert
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.NotContains(t, first.Body.String(), "passwordHash")
}

func Test_UserEndpoints_CreateRejectsShortPasswords(t *testing.T) {
	// arrange
	_, handler := newTestServer()

	// act
	recorder := doJSON(t, handler, http.MethodPost, "/v1/users", map[string]string{
		"userName": "gopher",
		"email":    "gopher@example.com",
		"password": "short",
	})

	// assert
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func Test_BookEndpoints_CreateDefaultsAvailableToTotal(t *testing.T) {
	// arrange
	_, handler := newTestServer()

	// act
	recorder := doJSON(t, handler, http.MethodPost, "/v1/books", map[string]any{
		"title":       "Clean Architecture",
		"author":      "Robert C. Martin",
		"totalCopies": 3,
	})

	// assert
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var book libstore.Book
	decodeBody(t, recorder, &book)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.CopiesAvailable)
}

func Test_BookEndpoints_UpdateShiftsAvailableCopiesWithTotal(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 2)

	require.Equal(t, http.StatusCreated, doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()}).Code)

	// act
	recorder := doJSON(t, handler, http.MethodPut, "/v1/books/"+book.ID.String(),
		map[string]any{"totalCopies": 5})

	// assert
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var updated libstore.Book
	decodeBody(t, recorder, &updated)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 4, updated.CopiesAvailable, "the borrowed copy stays on loan")
}

func Test_BookEndpoints_GetUnknownBookReturns404(t *testing.T) {
	// arrange
	_, handler := newTestServer()

	// act
	recorder := doJSON(t, handler, http.MethodGet, "/v1/books/"+uuid.NewString(), nil)

	// assert
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func Test_ReviewEndpoints_RejectOutOfRangeRatings(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	// act
	recorder := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/reviews",
		map[string]any{"userId": user.ID.String(), "review": "great", "rating": 6})

	// assert
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func Test_ReviewEndpoints_CreateAndListByBook(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	created := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/reviews",
		map[string]any{"userId": user.ID.String(), "review": "worth rereading", "rating": 5})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	// act
	recorder := doJSON(t, handler, http.MethodGet,
		"/v1/books/"+book.ID.String()+"/reviews", nil)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code)

	var reviews []libstore.Review
	decodeBody(t, recorder, &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5, reviews[0].Rating)
}

func Test_BorrowingHistoryEndpoint_AggregatesFeesAndActiveCount(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)

	require.NoError(t, store.InsertBorrow(context.Background(), libstore.Borrow{
		ID:         uuid.New(),
		UserID:     user.ID,
		BookID:     uuid.New(),
		DueDate:    time.Now().Add(7 * 24 * time.Hour),
		IsReturned: false,
	}))
	require.NoError(t, store.InsertBorrow(context.Background(), libstore.Borrow{
		ID:         uuid.New(),
		UserID:     user.ID,
		BookID:     uuid.New(),
		IsReturned: true,
		LateFee:    2.0,
	}))

	// act
	recorder := doJSON(t, handler, http.MethodGet,
		"/v1/users/"+user.ID.String()+"/borrowings", nil)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var history struct {
		ActiveCount int     `json:"activeCount"`
		TotalFees   float64 `json:"totalFees"`
	}
	decodeBody(t, recorder, &history)
	assert.Equal(t, 1, history.ActiveCount)
	assert.InDelta(t, 2.0, history.TotalFees, 0.0001)
}

func Test_HealthEndpoint_ReportsOK(t *testing.T) {
	// arrange
	_, handler := newTestServer()

	// act
	recorder := doJSON(t, handler, http.MethodGet, "/healthz", nil)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "ok")
}

func Test_MetricsEndpoint_CountsBorrowAttempts(t *testing.T) {
	// arrange
	metrics := obs.NewMetrics()
	store, handler := newTestServer(httpapi.WithMetrics(metrics))
	user := seedUser(t, store)
	book := seedBook(t, store, 1)

	require.Equal(t, http.StatusCreated, doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()}).Code)

	// act
	recorder := doJSON(t, handler, http.MethodGet, "/metrics", nil)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(),
		`libris_borrows_total{result="success"} 1`)
	assert.Contains(t, recorder.Body.String(), "libris_http_requests_total")
}

func Test_ErrorBodies_MaskInternalErrors(t *testing.T) {
	// arrange
	store, handler := newTestServer()
	user := seedUser(t, store)
	book := seedBook(t, store, 1)
	store.InsertBorrowErr = fmt.Errorf("disk on fire")

	// act
	recorder := doJSON(t, handler, http.MethodPost,
		"/v1/books/"+book.ID.String()+"/borrow",
		map[string]string{"userId": user.ID.String()})

	// assert
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "disk on fire")
	assert.Contains(t, recorder.Body.String(), "internal error")
}

func Test_Responses_CarryARequestID(t *testing.T) {
	// arrange
	_, handler := newTestServer()

	// act
	generated := doJSON(t, handler, http.MethodGet, "/healthz", nil)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "abc-123")
	echoed := httptest.NewRecorder()
	handler.ServeHTTP(echoed, request)

	// assert
	assert.NotEmpty(t, generated.Header().Get("X-Request-Id"))
	assert.Equal(t, "abc-123", echoed.Header().Get("X-Request-Id"))
}
