package validation

import (
	"github.com/ader1990/adpreplic/internal/errors"
)

const (
	// MaxKeySize is the maximum key length in bytes
	MaxKeySize = 512
	// MaxValueSize is the maximum value length in bytes
	MaxValueSize = 1 << 20
)

// Validator checks client API inputs before they reach the replica manager
type Validator struct{}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateKey checks key constraints
func (v *Validator) ValidateKey(key string) error {
	if key == "" {
		return errors.InvalidArgument("key is required")
	}
	if len(key) > MaxKeySize {
		return errors.KeyTooLarge(len(key), MaxKeySize)
	}
	return nil
}

// ValidateValue checks value constraints
func (v *Validator) ValidateValue(value []byte) error {
	if value == nil {
		return errors.InvalidArgument("value is required")
	}
	if len(value) > MaxValueSize {
		return errors.ValueTooLarge(len(value), MaxValueSize)
	}
	return nil
}
