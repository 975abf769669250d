// Package logic holds the pure event-creation validators. They do no I/O
// and report expected-invalid input as a *ValidationError, never a panic.
package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxTitleLength = 80
	MinCapacity    = 1
	MaxCapacity    = 500
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator bundles the pure checks with an injectable clock so tests do not
// depend on wall-clock time.
type Validator struct {
	Now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

// ValidateTitle fails on blank titles and titles over 80 characters.
func (v *Validator) ValidateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	}
	return nil
}

// ValidateCapacity parses the trimmed input and checks the [1, 500] range.
func (v *Validator) ValidateCapacity(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return &ValidationError{Field: "capacity", Message: "capacity is required"}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return &ValidationError{Field: "capacity", Message: "capacity must be a whole number"}
	}
	if n < MinCapacity || n > MaxCapacity {
		return &ValidationError{Field: "capacity", Message: fmt.Sprintf("capacity must be between %d and %d", MinCapacity, MaxCapacity)}
	}
	return nil
}

// ValidateWhen requires the instant to be strictly after the validator's
// current time.
func (v *Validator) ValidateWhen(epochMillis int64) error {
	if epochMillis <= v.Now().UnixMilli() {
		return &ValidationError{Field: "when", Message: "time must be in the future"}
	}
	return nil
}

// ValidateFee accepts a blank fee (free event) or a non-negative decimal.
func (v *Validator) ValidateFee(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	fee, err := decimal.NewFromString(trimmed)
	if err != nil {
		return &ValidationError{Field: "fee", Message: "fee must be a decimal amount"}
	}
	if fee.IsNegative() {
		return &ValidationError{Field: "fee", Message: "fee must not be negative"}
	}
	return nil
}
