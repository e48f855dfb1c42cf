package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreditAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		valid  bool
	}{
		{"half credit", decimal.NewFromFloat(0.5), true},
		{"one credit", decimal.NewFromInt(1), true},
		{"several credits", decimal.NewFromInt(3), true},
		{"large whole amount", decimal.NewFromInt(10000), true},
		{"zero", decimal.Zero, false},
		{"negative", decimal.NewFromInt(-1), false},
		{"negative half", decimal.NewFromFloat(-0.5), false},
		{"other fraction", decimal.NewFromFloat(0.3), false},
		{"whole plus fraction", decimal.NewFromFloat(1.5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreditAmount(tt.amount)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAmount)
			}
		})
	}
}

func TestValidationHelper(t *testing.T) {
	vh := NewValidationHelper()

	type payload struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required,min=2"`
	}

	t.Run("valid struct passes", func(t *testing.T) {
		assert.NoError(t, vh.ValidateStruct(&payload{Email: "jane@example.com", Name: "Jane"}))
	})

	t.Run("invalid struct fails", func(t *testing.T) {
		assert.Error(t, vh.ValidateStruct(&payload{Email: "not-an-email", Name: "J"}))
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something went wrong", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Something went wrong", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation error includes field details", func(t *testing.T) {
		vh := NewValidationHelper()
		err := vh.ValidateStruct(&LoginRequest{Email: "not-an-email", Password: "short"})
		assert.Error(t, err)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Email")
		assert.Contains(t, resp.Details, "Password")
	})
}
