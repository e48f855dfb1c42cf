package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mentorbridge/backend/internal/models"
)

var (
	// ErrInsufficientCredits means a hold was requested for more than the
	// spendable balance. The account is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrHoldExists means a hold for this (user, session) pair was already
	// placed; a retried booking must not move credits twice.
	ErrHoldExists = errors.New("hold already placed for this session")
	// ErrHoldNotFound means no open hold exists for the (user, session)
	// pair, either because it was never placed or already consumed.
	ErrHoldNotFound = errors.New("no open hold for this session")
)

const pqUniqueViolation = "23505"

// CreditService implements the credit ledger: one account row per user, an
// append-only transaction log, and the four permitted mutations (purchase,
// hold, deduct-held, return-held). Every operation commits its account
// update and its log row in a single database transaction, so the pair can
// never diverge. Exported ...Tx variants let callers compose a ledger
// operation with their own writes.
type CreditService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCreditService(db *sql.DB) *CreditService {
	return &CreditService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// GetOrCreateAccount returns the account for userID, creating a zeroed one
// if absent. The upsert is keyed on the unique user_id column, so concurrent
// first accesses resolve to a single row.
func (s *CreditService) GetOrCreateAccount(userID string) (*models.CreditAccount, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.getOrCreateAccountTx(tx, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

func (s *CreditService) ensureAccountTx(tx *sql.Tx, userID string) error {
	_, err := tx.Exec(`INSERT INTO credit_accounts (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID)
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

func (s *CreditService) getAccountTx(tx *sql.Tx, userID string) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := tx.QueryRow(`SELECT id, user_id, balance, held_balance, total_purchased, total_spent, created_at, updated_at FROM credit_accounts WHERE user_id = $1`,
		userID).Scan(&account.ID, &account.UserID, &account.Balance, &account.HeldBalance,
		&account.TotalPurchased, &account.TotalSpent, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &account, nil
}

func (s *CreditService) getOrCreateAccountTx(tx *sql.Tx, userID string) (*models.CreditAccount, error) {
	if err := s.ensureAccountTx(tx, userID); err != nil {
		return nil, err
	}
	return s.getAccountTx(tx, userID)
}

// appendTransactionTx writes one immutable ledger row. Rows are only ever
// inserted, never updated or deleted.
func (s *CreditService) appendTransactionTx(tx *sql.Tx, userID string, txType models.TransactionType,
	amount, balanceAfter decimal.Decimal, sessionID *string, description string) (*models.CreditTransaction, error) {

	entry := models.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		SessionID:    sessionID,
		Description:  description,
	}
	err := tx.QueryRow(`INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, session_id, description) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		entry.ID, entry.UserID, entry.Type, entry.Amount, entry.BalanceAfter, entry.SessionID, entry.Description).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return &entry, nil
}

// Purchase adds spendable credits and bumps the lifetime purchase counter.
// Purchases are not capped.
func (s *CreditService) Purchase(userID string, amount decimal.Decimal, description string) (*models.CreditTransaction, *models.CreditAccount, error) {
	if err := ValidateCreditAmount(amount); err != nil {
		return nil, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureAccountTx(tx, userID); err != nil {
		return nil, nil, err
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRow(`UPDATE credit_accounts SET balance = balance + $1, total_purchased = total_purchased + $1, updated_at = NOW() WHERE user_id = $2 RETURNING balance`,
		amount, userID).Scan(&balanceAfter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply purchase: %w", err)
	}

	entry, err := s.appendTransactionTx(tx, userID, models.TransactionPurchase, amount, balanceAfter, nil, description)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.getAccountTx(tx, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, account, nil
}

// Hold moves amount from spendable balance into held balance for sessionID.
func (s *CreditService) Hold(userID string, amount decimal.Decimal, sessionID string) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.HoldTx(tx, userID, amount, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// HoldTx places a hold inside an existing database transaction. The balance
// precondition and the debit are one conditional update, so concurrent holds
// cannot overdraw the account. A duplicate (user, session) hold is rejected
// by the primary key before any balance moves.
func (s *CreditService) HoldTx(tx *sql.Tx, userID string, amount decimal.Decimal, sessionID string) (*models.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if err := s.ensureAccountTx(tx, userID); err != nil {
		return nil, err
	}

	_, err := tx.Exec(`INSERT INTO credit_holds (user_id, session_id, amount) VALUES ($1, $2, $3)`,
		userID, sessionID, amount)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrHoldExists
		}
		return nil, fmt.Errorf("failed to create hold: %w", err)
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRow(`UPDATE credit_accounts SET balance = balance - $1, held_balance = held_balance + $1, updated_at = NOW() WHERE user_id = $2 AND balance >= $1 RETURNING balance`,
		amount, userID).Scan(&balanceAfter)
	if err == sql.ErrNoRows {
		return nil, ErrInsufficientCredits
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply hold: %w", err)
	}

	return s.appendTransactionTx(tx, userID, models.TransactionHold, amount, balanceAfter, &sessionID,
		fmt.Sprintf("Hold for session %s", sessionID))
}

// DeductHeld finalizes the hold for sessionID as spent.
func (s *CreditService) DeductHeld(userID, sessionID string) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.DeductHeldTx(tx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// DeductHeldTx consumes the open hold for (userID, sessionID) and recognizes
// its amount as spent. The amount moved is the amount the hold recorded, so
// a replayed or out-of-order call finds no open hold and changes nothing.
func (s *CreditService) DeductHeldTx(tx *sql.Tx, userID, sessionID string) (*models.CreditTransaction, error) {
	amount, err := s.consumeHoldTx(tx, userID, sessionID, models.HoldDeducted)
	if err != nil {
		return nil, err
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRow(`UPDATE credit_accounts SET held_balance = held_balance - $1, total_spent = total_spent + $1, updated_at = NOW() WHERE user_id = $2 RETURNING balance`,
		amount, userID).Scan(&balanceAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to apply deduction: %w", err)
	}

	return s.appendTransactionTx(tx, userID, models.TransactionDeduct, amount, balanceAfter, &sessionID,
		fmt.Sprintf("Payment for completed session %s", sessionID))
}

// ReturnHeld releases the hold for sessionID back to spendable balance.
func (s *CreditService) ReturnHeld(userID, sessionID string) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.ReturnHeldTx(tx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// ReturnHeldTx consumes the open hold for (userID, sessionID) and moves its
// amount back into spendable balance. Idempotent the same way DeductHeldTx is.
func (s *CreditService) ReturnHeldTx(tx *sql.Tx, userID, sessionID string) (*models.CreditTransaction, error) {
	amount, err := s.consumeHoldTx(tx, userID, sessionID, models.HoldReturned)
	if err != nil {
		return nil, err
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRow(`UPDATE credit_accounts SET held_balance = held_balance - $1, balance = balance + $1, updated_at = NOW() WHERE user_id = $2 RETURNING balance`,
		amount, userID).Scan(&balanceAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to apply return: %w", err)
	}

	return s.appendTransactionTx(tx, userID, models.TransactionReturn, amount, balanceAfter, &sessionID,
		fmt.Sprintf("Returned hold for cancelled session %s", sessionID))
}

// consumeHoldTx atomically transitions the open hold to its terminal status
// and returns the held amount.
func (s *CreditService) consumeHoldTx(tx *sql.Tx, userID, sessionID string, status models.HoldStatus) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := tx.QueryRow(`UPDATE credit_holds SET status = $1, resolved_at = NOW() WHERE user_id = $2 AND session_id = $3 AND status = 'open' RETURNING amount`,
		status, userID, sessionID).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrHoldNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to consume hold: %w", err)
	}
	return amount, nil
}

// ListTransactions returns one page of ledger rows, most recent first, plus
// the total count of matching rows for pagination.
func (s *CreditService) ListTransactions(filter models.TransactionFilter, limit, offset int) (*models.TransactionPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var conds []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM credit_transactions`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	pageArgs := append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, user_id, type, amount, balance_after, session_id, description, created_at FROM credit_transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clause, len(args)+1, len(args)+2)

	rows, err := s.db.Query(query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.CreditTransaction{}
	for rows.Next() {
		var entry models.CreditTransaction
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Type, &entry.Amount,
			&entry.BalanceAfter, &entry.SessionID, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return &models.TransactionPage{
		Transactions: transactions,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}, nil
}

// CirculationStats sums spendable, held, and spent credits across all
// accounts. Full-table aggregation, intended for admin dashboards only.
func (s *CreditService) CirculationStats() (*models.CirculationStats, error) {
	var stats models.CirculationStats
	err := s.db.QueryRow(`SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(held_balance), 0), COALESCE(SUM(total_spent), 0), COALESCE(SUM(total_purchased), 0), COUNT(*) FROM credit_accounts`).
		Scan(&stats.TotalBalance, &stats.TotalHeld, &stats.TotalSpent, &stats.TotalPurchased, &stats.AccountCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate circulation stats: %w", err)
	}
	return &stats, nil
}

// ── HTTP handlers ──

// PurchaseRequest represents the credit purchase payload
// @Description Credit purchase request structure
type PurchaseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=200"`
}

// BalanceEnquiry returns the caller's credit account
// @Summary Get credit balance
// @Description Get the authenticated user's credit account, creating it on first access
// @Tags credits
// @Produce json
// @Success 200 {object} models.CreditAccount
// @Failure 401 {object} ErrorResponse
// @Router /credits/balance [get]
func (s *CreditService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.GetOrCreateAccount(userID)
	if err != nil {
		log.Printf("[CREDITS] Balance enquiry failed for user %s: %v", userID, err)
		http.Error(w, "Failed to fetch balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// PurchaseCredits handles a credit purchase
// @Summary Purchase credits
// @Description Add credits to the authenticated user's balance
// @Tags credits
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Purchase request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /credits/purchase [post]
func (s *CreditService) PurchaseCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PurchaseRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := ValidateCreditAmount(req.Amount); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Purchased %s credits", req.Amount)
	}

	entry, account, err := s.Purchase(userID, req.Amount, description)
	if err != nil {
		log.Printf("[CREDITS] Purchase failed for user %s: %v", userID, err)
		http.Error(w, "Failed to process purchase", http.StatusInternalServerError)
		return
	}

	log.Printf("[CREDITS] User %s purchased %s credits", userID, req.Amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"transaction": entry,
		"account":     account,
	})
}

// ListMyTransactions lists the caller's own ledger entries
// @Summary List own credit transactions
// @Description Paginated ledger history for the authenticated user, newest first
// @Tags credits
// @Produce json
// @Param type query string false "Transaction type filter"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.TransactionPage
// @Failure 400 {object} ErrorResponse
// @Router /credits/transactions [get]
func (s *CreditService) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	s.listTransactionsResponse(w, r, models.TransactionFilter{UserID: userID})
}

// AdminListTransactions lists ledger entries across all users
// @Summary List credit transactions (admin)
// @Description Paginated ledger listing filterable by user and type
// @Tags admin
// @Produce json
// @Param userId query string false "User filter"
// @Param type query string false "Transaction type filter"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.TransactionPage
// @Failure 400 {object} ErrorResponse
// @Router /admin/credits/transactions [get]
func (s *CreditService) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	s.listTransactionsResponse(w, r, models.TransactionFilter{UserID: r.URL.Query().Get("userId")})
}

func (s *CreditService) listTransactionsResponse(w http.ResponseWriter, r *http.Request, filter models.TransactionFilter) {
	if t := r.URL.Query().Get("type"); t != "" {
		txType := models.TransactionType(t)
		switch txType {
		case models.TransactionPurchase, models.TransactionHold, models.TransactionDeduct,
			models.TransactionRefund, models.TransactionReturn:
			filter.Type = txType
		default:
			SendErrorResponse(w, "Unknown transaction type", http.StatusBadRequest, nil)
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := s.ListTransactions(filter, limit, offset)
	if err != nil {
		log.Printf("[CREDITS] Transaction listing failed: %v", err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// CirculationReport returns platform-wide credit aggregates
// @Summary Credit circulation stats (admin)
// @Description Sum of spendable, held, spent, and purchased credits across all accounts
// @Tags admin
// @Produce json
// @Success 200 {object} models.CirculationStats
// @Router /admin/credits/stats [get]
func (s *CreditService) CirculationReport(w http.ResponseWriter, r *http.Request) {
	stats, err := s.CirculationStats()
	if err != nil {
		log.Printf("[CREDITS] Circulation stats failed: %v", err)
		http.Error(w, "Failed to aggregate stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func userIDFromContext(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value("userID").(string)
	return userID, ok && userID != ""
}
