package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a credit amount is neither 0.5 nor a
// positive whole number.
var ErrInvalidAmount = errors.New("amount must be 0.5 or a positive whole number")

var halfCredit = decimal.New(5, -1)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// ValidateCreditAmount enforces the platform purchase rule: credits are sold
// as a single half credit or whole-credit multiples, nothing else.
func ValidateCreditAmount(amount decimal.Decimal) error {
	if amount.Equal(halfCredit) {
		return nil
	}
	if amount.IsPositive() && amount.IsInteger() {
		return nil
	}
	return ErrInvalidAmount
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		var fieldErrs validator.ValidationErrors
		if errors.As(validationErr, &fieldErrs) {
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
