package services

import (
	"github.com/lib/pq"
	"github.com/spf13/viper"
)

func duplicateKeyError() *pq.Error {
	return &pq.Error{Code: pqUniqueViolation}
}

// setAuthTestConfig sets the hashing and token parameters the auth helpers
// read from viper. Low argon2 cost keeps the tests fast.
func setAuthTestConfig() {
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
	viper.Set("jwt.secret_key", "test-secret-key")
	viper.Set("jwt.expiry_hours", 24)
}
