package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mentorbridge/backend/internal/models"
)

const testMentorID = "c1f8e2d3-4b5a-4c6d-8e7f-9a0b1c2d3e4f"

func newSessionTestService(t *testing.T) (*SessionService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewSessionService(db, NewCreditService(db)), mock, func() { db.Close() }
}

func TestSessionService_Book(t *testing.T) {
	service, mock, closeDB := newSessionTestService(t)
	defer closeDB()

	req := BookSessionRequest{
		MentorID:        testMentorID,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
		Price:           decimal.NewFromInt(4),
	}

	t.Run("booking creates the session and holds its price", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO sessions").
			WithArgs(sqlmock.AnyArg(), testUserID, testMentorID, req.ScheduledAt, 60, req.Price, "booked").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec("INSERT INTO credit_accounts").
			WithArgs(sqlmock.AnyArg(), testUserID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO credit_holds").
			WithArgs(testUserID, sqlmock.AnyArg(), req.Price).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance - \$1`).
			WithArgs(req.Price, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("6"))
		mock.ExpectQuery("INSERT INTO credit_transactions").
			WithArgs(sqlmock.AnyArg(), testUserID, "hold", req.Price, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		session, entry, err := service.Book(testUserID, req)
		assert.NoError(t, err)
		assert.Equal(t, models.SessionBooked, session.Status)
		assert.Equal(t, testMentorID, session.MentorID)
		assert.Equal(t, models.TransactionHold, entry.Type)
		assert.NotNil(t, entry.SessionID)
		assert.Equal(t, session.ID, *entry.SessionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed hold rolls the booking back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO sessions").
			WithArgs(sqlmock.AnyArg(), testUserID, testMentorID, req.ScheduledAt, 60, req.Price, "booked").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec("INSERT INTO credit_accounts").
			WithArgs(sqlmock.AnyArg(), testUserID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO credit_holds").
			WithArgs(testUserID, sqlmock.AnyArg(), req.Price).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance - \$1`).
			WithArgs(req.Price, testUserID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		session, entry, err := service.Book(testUserID, req)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.Nil(t, session)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Complete(t *testing.T) {
	service, mock, closeDB := newSessionTestService(t)
	defer closeDB()

	four := decimal.NewFromInt(4)

	t.Run("mentor completes a booked session", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE sessions SET status = 'completed'`).
			WithArgs(testSessionID, testMentorID).
			WillReturnRows(sqlmock.NewRows([]string{"mentee_id"}).AddRow(testUserID))
		mock.ExpectQuery(`UPDATE credit_holds SET status = \$1`).
			WithArgs("deducted", testUserID, testSessionID).
			WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("4"))
		mock.ExpectQuery(`UPDATE credit_accounts SET held_balance = held_balance - \$1, total_spent = total_spent \+ \$1`).
			WithArgs(four, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("6"))
		mock.ExpectQuery("INSERT INTO credit_transactions").
			WithArgs(sqlmock.AnyArg(), testUserID, "deduct", four, sqlmock.AnyArg(), testSessionID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		entry, err := service.Complete(testMentorID, testSessionID)
		assert.NoError(t, err)
		assert.Equal(t, models.TransactionDeduct, entry.Type)
		assert.True(t, entry.Amount.Equal(four))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed completion fails the status guard", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE sessions SET status = 'completed'`).
			WithArgs(testSessionID, testMentorID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		entry, err := service.Complete(testMentorID, testSessionID)
		assert.ErrorIs(t, err, ErrSessionNotActionable)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Cancel(t *testing.T) {
	service, mock, closeDB := newSessionTestService(t)
	defer closeDB()

	four := decimal.NewFromInt(4)

	t.Run("cancellation returns the held credits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE sessions SET status = 'cancelled'`).
			WithArgs(testSessionID, testMentorID).
			WillReturnRows(sqlmock.NewRows([]string{"mentee_id"}).AddRow(testUserID))
		mock.ExpectQuery(`UPDATE credit_holds SET status = \$1`).
			WithArgs("returned", testUserID, testSessionID).
			WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("4"))
		mock.ExpectQuery(`UPDATE credit_accounts SET held_balance = held_balance - \$1, balance = balance \+ \$1`).
			WithArgs(four, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10"))
		mock.ExpectQuery("INSERT INTO credit_transactions").
			WithArgs(sqlmock.AnyArg(), testUserID, "return", four, sqlmock.AnyArg(), testSessionID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		entry, err := service.Cancel(testMentorID, testSessionID)
		assert.NoError(t, err)
		assert.Equal(t, models.TransactionReturn, entry.Type)
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(10)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelling an already cancelled session is rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE sessions SET status = 'cancelled'`).
			WithArgs(testSessionID, testUserID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.Cancel(testUserID, testSessionID)
		assert.ErrorIs(t, err, ErrSessionNotActionable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_BookSessionHandler(t *testing.T) {
	service, mock, closeDB := newSessionTestService(t)
	defer closeDB()

	authedRequest := func(body string) *http.Request {
		req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return req.WithContext(context.WithValue(req.Context(), "userID", testUserID))
	}

	t.Run("insufficient credits returns 402", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO sessions").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec("INSERT INTO credit_accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO credit_holds").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance - \$1`).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		service.BookSession(w, authedRequest(`{"mentorId": "`+testMentorID+`", "scheduledAt": "2026-09-15T10:00:00Z", "durationMinutes": 60, "price": 4}`))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate booking returns 409", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO sessions").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec("INSERT INTO credit_accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO credit_holds").
			WillReturnError(duplicateKeyError())
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		service.BookSession(w, authedRequest(`{"mentorId": "`+testMentorID+`", "scheduledAt": "2026-09-15T10:00:00Z", "durationMinutes": 60, "price": 4}`))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fractional price is rejected before any query", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.BookSession(w, authedRequest(`{"mentorId": "`+testMentorID+`", "scheduledAt": "2026-09-15T10:00:00Z", "durationMinutes": 60, "price": 2.7}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("booking yourself is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/sessions",
			bytes.NewBufferString(`{"mentorId": "`+testMentorID+`", "scheduledAt": "2026-09-15T10:00:00Z", "durationMinutes": 60, "price": 4}`))
		req = req.WithContext(context.WithValue(req.Context(), "userID", testMentorID))
		service.BookSession(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing auth context returns 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.BookSession(w, httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSessionService_CompleteSessionHandler(t *testing.T) {
	service, mock, closeDB := newSessionTestService(t)
	defer closeDB()

	t.Run("already settled session returns 409", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE sessions SET status = 'completed'`).
			WithArgs(testSessionID, testMentorID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("sessionId", testSessionID)

		req := httptest.NewRequest("POST", "/api/v1/sessions/"+testSessionID+"/complete", nil)
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		ctx = context.WithValue(ctx, "userID", testMentorID)

		w := httptest.NewRecorder()
		service.CompleteSession(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Session not found or already settled", resp.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
