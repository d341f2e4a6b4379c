// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the longest envelope name allowed, counted in characters.
const MaxNameLength = 50

var (
	// ErrEnvelopeNotFound indicates that the envelope is not found.
	ErrEnvelopeNotFound = errors.New("Envelope not found")
	// ErrInvalidName indicates an empty or too long envelope name.
	ErrInvalidName = errors.New("name must be a non-empty string up to 50 characters")
	// ErrInvalidBalance indicates a negative or non-numeric envelope balance.
	ErrInvalidBalance = errors.New("balance must be a non-negative number")
)

// Envelope is a named bucket holding a non-negative balance in cents.
type Envelope struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BalanceCents int64     `json:"balanceCents"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpdateEnvelopeParams holds the fields to change on an envelope.
// Nil fields are left untouched.
type UpdateEnvelopeParams struct {
	Name         *string
	BalanceCents *int64
}

// Empty reports whether no field is set.
func (p UpdateEnvelopeParams) Empty() bool {
	return p.Name == nil && p.BalanceCents == nil
}

// NormalizeName trims the name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return name, ErrInvalidName
	}

	return name, nil
}
