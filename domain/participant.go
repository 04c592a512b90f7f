// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"bkalan/errors"
	"fmt"
	"strings"
)

// Participant is the local user of a session. The display name is free text,
// neither unique nor authenticated.
type Participant struct {
	DisplayName string
}

// NewParticipant rejects names made only of whitespace.
func NewParticipant(displayName string) (Participant, error) {
	if strings.TrimSpace(displayName) == "" {
		return Participant{}, fmt.Errorf("%w: display name is empty", errors.ErrValidation)
	}
	return Participant{DisplayName: displayName}, nil
}

// ValidateBody rejects outgoing messages made only of whitespace.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body is empty", errors.ErrValidation)
	}
	return nil
}
