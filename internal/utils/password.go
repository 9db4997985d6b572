package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BcryptHasher hashes reservation passwords at a fixed cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) { return HashPassword(plain, h.Cost) }

func (h BcryptHasher) Verify(hash, plain string) bool { return VerifyPassword(hash, plain) }

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz"
	digits   = "0123456789"
)

var keyboardRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}

// IsWeakPassword reports whether candidate is too guessable to protect a
// reservation.  Matching is case-insensitive.  A password is weak when it
//   - repeats one character 4 or more times in a row,
//   - is a prefix of the alphabet or of a keyboard row,
//   - contains 4 consecutive ascending or descending digits or letters.
func IsWeakPassword(candidate string) bool {
	s := strings.ToLower(candidate)
	if s == "" {
		return true
	}
	if strings.HasPrefix(alphabet, s) {
		return true
	}
	for _, row := range keyboardRows {
		if strings.HasPrefix(row, s) {
			return true
		}
	}
	return hasRepeatRun(s, 4) || hasSequenceRun(s, 4)
}

func hasRepeatRun(s string, n int) bool {
	rs := []rune(s)
	run := 1
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasSequenceRun slides an n-byte window over s and checks each window
// against the digit and letter sequences in both directions.
func hasSequenceRun(s string, n int) bool {
	for i := 0; i+n <= len(s); i++ {
		w := s[i : i+n]
		for _, seq := range []string{digits, alphabet} {
			if strings.Contains(seq, w) || strings.Contains(seq, reverse(w)) {
				return true
			}
		}
	}
	return false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
