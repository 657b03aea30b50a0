// Package domain contains entities without transport or storage logic.
package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

type UserID string

// Participant is an identity reference. Sessions point at participants but
// never own their lifecycle.
type Participant struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NewParticipant trims and validates the identity fields.
func NewParticipant(id, name string) (Participant, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Participant{}, fmt.Errorf("%w: participant id is required", ErrValidation)
	}
	if len(id) > MaxUserIDLen {
		return Participant{}, fmt.Errorf("%w: participant id too long", ErrValidation)
	}
	if hasControl(id) || !utf8.ValidString(id) {
		return Participant{}, fmt.Errorf("%w: participant id has invalid characters", ErrValidation)
	}
	name = truncate(name, MaxUsernameLen)
	if name == "" {
		return Participant{}, fmt.Errorf("%w: participant name is required", ErrValidation)
	}
	return Participant{ID: UserID(id), Name: name}, nil
}
