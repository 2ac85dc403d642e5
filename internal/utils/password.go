package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost mirrors bcrypt.DefaultCost; it is what BCRYPT_COST falls back to.
const DefaultBcryptCost = bcrypt.DefaultCost

// MaxPasswordBytes is the longest input bcrypt accepts; GenerateFromPassword
// fails with bcrypt.ErrPasswordTooLong beyond it.
const MaxPasswordBytes = 72

// dummyHash is compared against when a login names an unknown email so both
// failure paths spend the same bcrypt time.
var dummyHash = sync.OnceValue(func() string { return mustHash("vendor-vault-timing-equalizer") })

// HashPassword returns bcrypt hash using the given cost.  Every call draws a
// fresh salt, so identical inputs produce different hashes.
//
// plain must not exceed MaxPasswordBytes; handlers check this before
// calling so the error here only surfaces for a bad cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.  A hash
// that is not a valid bcrypt string is simply a mismatch.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BurnPasswordCheck performs a throwaway comparison against a fixed hash.
// Login calls it when the email is unknown so that path costs as much
// bcrypt time as a wrong password.
func BurnPasswordCheck(plain string) {
	_ = VerifyPassword(dummyHash(), plain)
}

func mustHash(s string) string {
	h, err := HashPassword(s, DefaultBcryptCost)
	if err != nil {
		panic(err)
	}
	return h
}
