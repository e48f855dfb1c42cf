package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func signTestToken(t *testing.T, userID, role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	assert.NoError(t, err)
	return signed
}

func TestAuth(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret-key")

	echoUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value("userID").(string)
		role, _ := r.Context().Value("userRole").(string)
		w.Write([]byte(userID + ":" + role))
	})

	t.Run("valid token populates the context", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/credits/balance", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", "mentee"))
		w := httptest.NewRecorder()

		Auth(nil)(echoUser).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1:mentee", w.Body.String())
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/credits/balance", nil)
		w := httptest.NewRecorder()

		Auth(nil)(echoUser).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/credits/balance", nil)
		req.Header.Set("Authorization", "token-without-scheme")
		w := httptest.NewRecorder()

		Auth(nil)(echoUser).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another key returns 401", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": "user-1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := forged.SignedString([]byte("some-other-key"))
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/v1/credits/balance", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		Auth(nil)(echoUser).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("blacklisted token returns 401", func(t *testing.T) {
		token := signTestToken(t, "user-1", "mentee")

		rdb, rmock := redismock.NewClientMock()
		rmock.ExpectExists("blacklist:" + token).SetVal(1)

		req := httptest.NewRequest("GET", "/api/v1/credits/balance", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		Auth(rdb)(echoUser).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestRequireRole(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret-key")

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := Auth(nil)(RequireRole("admin")(ok))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/admin/credits/stats", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "admin-1", "admin"))
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("mentee is forbidden", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/admin/credits/stats", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", "mentee"))
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
