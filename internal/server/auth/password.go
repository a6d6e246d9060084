package auth

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/securenotes/internal/common"
)

// MinPasswordScore is the lowest Strength score accepted for new passwords.
const MinPasswordScore = 3

var strengthLabels = [...]string{"Very weak", "Weak", "Okay", "Strong", "Very strong"}

// PasswordStrength is the result of the password heuristic.
type PasswordStrength struct {
	Score        int    `json:"score"`
	Label        string `json:"label"`
	StrongEnough bool   `json:"strong_enough"`
}

// Strength scores a password one point each for length of at least 8,
// an ASCII upper-case letter, an ASCII digit and any other character
// outside [A-Za-z0-9].
func Strength(password string) PasswordStrength {
	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r < 'a' || r > 'z':
			symbol = true
		}
	}

	score := 0
	if utf8.RuneCountInString(password) >= 8 {
		score++
	}
	for _, ok := range []bool{upper, digit, symbol} {
		if ok {
			score++
		}
	}

	return PasswordStrength{
		Score:        score,
		Label:        strengthLabels[score],
		StrongEnough: score >= MinPasswordScore,
	}
}

// HashPassword checks strength and returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	if !Strength(password).StrongEnough {
		return "", common.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash with a candidate password.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return common.ErrorUnauthorized
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrorUnauthorized
	}
	return err
}
