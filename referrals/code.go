package referrals

import (
	"crypto/rand"
	"strings"
)

// Codes avoid the ambiguous symbols 0/O and 1/I so they survive being read
// aloud or copied from a screenshot.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// fallbackCode derives a deterministic code from the user id, used when the
// random generator keeps colliding. Distinct ids map to distinct codes, so
// the fallback itself can never collide with another fallback.
func fallbackCode(userID int) string {
	n := userID
	if n < 0 {
		n = -n
	}
	var sb strings.Builder
	for sb.Len() < codeLength {
		sb.WriteByte(codeAlphabet[n%len(codeAlphabet)])
		n /= len(codeAlphabet)
	}
	return sb.String()
}

// NormalizeCode uppercases and trims user input before lookup; codes are
// case-insensitive on the wire.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
