package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the business reason for a credit ledger entry.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionHold     TransactionType = "hold"
	TransactionDeduct   TransactionType = "deduct"
	TransactionRefund   TransactionType = "refund" // reserved; no operation produces it yet
	TransactionReturn   TransactionType = "return"
)

// HoldStatus tracks the lifecycle of a credit hold against a session.
type HoldStatus string

const (
	HoldOpen     HoldStatus = "open"
	HoldDeducted HoldStatus = "deducted"
	HoldReturned HoldStatus = "returned"
)

// CreditAccount is the per-user balance record. One row per user, created
// lazily on first access and never deleted.
type CreditAccount struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"userId" db:"user_id"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	HeldBalance    decimal.Decimal `json:"heldBalance" db:"held_balance"`
	TotalPurchased decimal.Decimal `json:"totalPurchased" db:"total_purchased"`
	TotalSpent     decimal.Decimal `json:"totalSpent" db:"total_spent"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// CreditTransaction is one row of the append-only ledger. BalanceAfter
// snapshots the spendable balance as it stood after the operation committed.
type CreditTransaction struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"userId" db:"user_id"`
	Type         TransactionType `json:"type" db:"type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter" db:"balance_after"`
	SessionID    *string         `json:"sessionId,omitempty" db:"session_id"`
	Description  string          `json:"description" db:"description"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// CreditHold earmarks credits for one session. The (user, session) primary
// key makes hold placement and consumption naturally idempotent.
type CreditHold struct {
	UserID     string          `json:"userId" db:"user_id"`
	SessionID  string          `json:"sessionId" db:"session_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Status     HoldStatus      `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty" db:"resolved_at"`
}

// TransactionFilter narrows ledger listings. Zero values mean "no filter".
type TransactionFilter struct {
	UserID string
	Type   TransactionType
}

// TransactionPage is one page of ledger rows plus the total match count,
// regardless of limit/offset.
type TransactionPage struct {
	Transactions []CreditTransaction `json:"transactions"`
	Total        int64               `json:"total"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// CirculationStats aggregates credits across all accounts for admin reporting.
type CirculationStats struct {
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	TotalHeld      decimal.Decimal `json:"totalHeld"`
	TotalSpent     decimal.Decimal `json:"totalSpent"`
	TotalPurchased decimal.Decimal `json:"totalPurchased"`
	AccountCount   int64           `json:"accountCount"`
}
