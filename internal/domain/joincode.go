package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// JoinCodeAlphabet leaves out O and 0 so codes can be read aloud.
const (
	JoinCodeAlphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"
	JoinCodeLen      = 6
)

type JoinCode string

func (c JoinCode) String() string { return string(c) }

// NewJoinCode draws a random code from JoinCodeAlphabet.
func NewJoinCode() (JoinCode, error) {
	var b strings.Builder
	b.Grow(JoinCodeLen)
	max := big.NewInt(int64(len(JoinCodeAlphabet)))
	for range JoinCodeLen {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(JoinCodeAlphabet[n.Int64()])
	}
	return JoinCode(b.String()), nil
}

// ParseJoinCode normalizes user input to upper case and rejects anything that
// could not have been generated.
func ParseJoinCode(raw string) (JoinCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("%w: join code is required", ErrValidation)
	}
	if len(code) != JoinCodeLen {
		return "", fmt.Errorf("%w: join code must be %d characters", ErrValidation, JoinCodeLen)
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(JoinCodeAlphabet, code[i]) < 0 {
			return "", fmt.Errorf("%w: join code contains %q", ErrValidation, code[i])
		}
	}
	return JoinCode(code), nil
}
