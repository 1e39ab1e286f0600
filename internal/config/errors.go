package config

import (
	"errors"
	"fmt"
)

// Conversion errors. A binding failing with one of these is dropped; its
// siblings are still converted.
var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrSingleKeyNeeded    = errors.New("single key needed")
	ErrMultipleKeysNeeded = errors.New("multiple keys needed")
	ErrKeyCountMismatch   = errors.New("number of keys differs from number of values")
	ErrKeyNotFound        = errors.New("key not found")
	ErrAmbiguousKey       = errors.New("both key and keys are set")
	ErrValueNotFound      = errors.New("value not found")
	ErrValuesNotFound     = errors.New("values not found")
	ErrChildrenNotFound   = errors.New("children not found")
)

// ConvertError annotates a conversion failure with the binding it came from.
type ConvertError struct {
	Command string
	Key     string
	Err     error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("invalid %s binding on %q: %v", e.Command, e.Key, e.Err)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}
