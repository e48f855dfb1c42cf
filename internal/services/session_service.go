package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mentorbridge/backend/internal/models"
)

// ErrSessionNotActionable means the session does not exist, does not belong
// to the caller, or is no longer in a state the requested transition allows.
var ErrSessionNotActionable = errors.New("session not found or not actionable")

// SessionService implements the booking flow that drives the credit ledger:
// booking places a hold, completion deducts it, cancellation returns it.
// Each transition and its ledger operation commit in one database
// transaction, so a session can never change state without the matching
// credit movement.
type SessionService struct {
	db        *sql.DB
	credits   *CreditService
	validator *ValidationHelper
}

func NewSessionService(db *sql.DB, credits *CreditService) *SessionService {
	return &SessionService{
		db:        db,
		credits:   credits,
		validator: NewValidationHelper(),
	}
}

// BookSessionRequest represents the booking payload
// @Description Session booking request structure
type BookSessionRequest struct {
	MentorID        string          `json:"mentorId" validate:"required,uuid4"`
	ScheduledAt     time.Time       `json:"scheduledAt" validate:"required"`
	DurationMinutes int             `json:"durationMinutes" validate:"required,gt=0,lte=480"`
	Price           decimal.Decimal `json:"price"`
}

// BookSession books a paid mentorship session
// @Summary Book a session
// @Description Book a session with a mentor, holding its price against the caller's credits
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body BookSessionRequest true "Booking request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse "Insufficient credits"
// @Router /sessions [post]
func (ss *SessionService) BookSession(w http.ResponseWriter, r *http.Request) {
	menteeID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req BookSessionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := ValidateCreditAmount(req.Price); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if req.MentorID == menteeID {
		SendErrorResponse(w, "Cannot book a session with yourself", http.StatusBadRequest, nil)
		return
	}

	session, entry, err := ss.Book(menteeID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCredits):
			SendErrorResponse(w, "Insufficient credits", http.StatusPaymentRequired, nil)
		case errors.Is(err, ErrHoldExists):
			SendErrorResponse(w, "Session already booked", http.StatusConflict, nil)
		default:
			log.Printf("[SESSION] Booking failed for mentee %s: %v", menteeID, err)
			http.Error(w, "Failed to book session", http.StatusInternalServerError)
		}
		return
	}

	log.Printf("[SESSION] Mentee %s booked session %s with mentor %s for %s credits",
		menteeID, session.ID, session.MentorID, session.Price)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"session":     session,
		"transaction": entry,
	})
}

// Book creates the session row and places the credit hold in one database
// transaction. If the hold fails, the booking never exists.
func (ss *SessionService) Book(menteeID string, req BookSessionRequest) (*models.Session, *models.CreditTransaction, error) {
	tx, err := ss.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session := models.Session{
		ID:              uuid.NewString(),
		MenteeID:        menteeID,
		MentorID:        req.MentorID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Status:          models.SessionBooked,
	}
	err = tx.QueryRow(`INSERT INTO sessions (id, mentee_id, mentor_id, scheduled_at, duration_minutes, price, status) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		session.ID, session.MenteeID, session.MentorID, session.ScheduledAt,
		session.DurationMinutes, session.Price, session.Status).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	entry, err := ss.credits.HoldTx(tx, menteeID, req.Price, session.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &session, entry, nil
}

// CompleteSession marks a session completed and finalizes payment
// @Summary Complete a session
// @Description Mark a booked session completed (mentor only) and deduct the held credits
// @Tags sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{sessionId}/complete [post]
func (ss *SessionService) CompleteSession(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := chi.URLParam(r, "sessionId")

	entry, err := ss.Complete(mentorID, sessionID)
	if err != nil {
		ss.respondTransitionError(w, sessionID, err)
		return
	}

	log.Printf("[SESSION] Session %s completed, %s credits deducted", sessionID, entry.Amount)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      models.SessionCompleted,
		"transaction": entry,
	})
}

// Complete flips booked → completed for the session's mentor and consumes
// the mentee's hold as spent, all in one database transaction. A replay
// fails the status guard before the ledger is touched.
func (ss *SessionService) Complete(mentorID, sessionID string) (*models.CreditTransaction, error) {
	tx, err := ss.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var menteeID string
	err = tx.QueryRow(`UPDATE sessions SET status = 'completed', updated_at = NOW() WHERE id = $1 AND mentor_id = $2 AND status = 'booked' RETURNING mentee_id`,
		sessionID, mentorID).Scan(&menteeID)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotActionable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	entry, err := ss.credits.DeductHeldTx(tx, menteeID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// CancelSession cancels a booked session and releases the hold
// @Summary Cancel a session
// @Description Cancel a booked session (either party) and return the held credits
// @Tags sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{sessionId}/cancel [post]
func (ss *SessionService) CancelSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := chi.URLParam(r, "sessionId")

	entry, err := ss.Cancel(userID, sessionID)
	if err != nil {
		ss.respondTransitionError(w, sessionID, err)
		return
	}

	log.Printf("[SESSION] Session %s cancelled, %s credits returned", sessionID, entry.Amount)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      models.SessionCancelled,
		"transaction": entry,
	})
}

// Cancel flips booked → cancelled for either participant and returns the
// mentee's hold to spendable balance, all in one database transaction.
func (ss *SessionService) Cancel(userID, sessionID string) (*models.CreditTransaction, error) {
	tx, err := ss.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var menteeID string
	err = tx.QueryRow(`UPDATE sessions SET status = 'cancelled', updated_at = NOW() WHERE id = $1 AND (mentee_id = $2 OR mentor_id = $2) AND status = 'booked' RETURNING mentee_id`,
		sessionID, userID).Scan(&menteeID)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotActionable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel session: %w", err)
	}

	entry, err := ss.credits.ReturnHeldTx(tx, menteeID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// GetSession fetches one session
// @Summary Get a session
// @Description Fetch a session the caller participates in
// @Tags sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId} [get]
func (ss *SessionService) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := chi.URLParam(r, "sessionId")

	var session models.Session
	err := ss.db.QueryRow(`SELECT id, mentee_id, mentor_id, scheduled_at, duration_minutes, price, status, created_at, updated_at FROM sessions WHERE id = $1 AND (mentee_id = $2 OR mentor_id = $2)`,
		sessionID, userID).Scan(&session.ID, &session.MenteeID, &session.MentorID, &session.ScheduledAt,
		&session.DurationMinutes, &session.Price, &session.Status, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[SESSION] Fetch failed for session %s: %v", sessionID, err)
		http.Error(w, "Failed to fetch session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

func (ss *SessionService) respondTransitionError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotActionable), errors.Is(err, ErrHoldNotFound):
		SendErrorResponse(w, "Session not found or already settled", http.StatusConflict, nil)
	default:
		log.Printf("[SESSION] Transition failed for session %s: %v", sessionID, err)
		http.Error(w, "Failed to update session", http.StatusInternalServerError)
	}
}
