package enumdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for enum record construction and value binding.
var (
	ErrDuplicateEntryName = errors.New("duplicate enum entry registration name")
	ErrIllegalBoundEntry  = errors.New("extension enum entries cannot assign explicit values")
	ErrMissingBaseBinding = errors.New("extension enum needs a first entry that assigns a value from the base enum")
	ErrUnknownBaseEntry   = errors.New("referenced entry does not exist in base enum")
	ErrUnknownBoundName   = errors.New("entry references an unknown symbol")
	ErrNoEntries          = errors.New("enum has no entries")
)

// EnumError attaches the qualified enum name to a binding or validation error.
type EnumError struct {
	Enum string
	Err  error
}

// Error implements the error interface.
func (e *EnumError) Error() string {
	return fmt.Sprintf("enum %s: %v", e.Enum, e.Err)
}

// Unwrap returns the underlying error so callers can use errors.Is.
func (e *EnumError) Unwrap() error { return e.Err }

func enumErr(name string, format string, args ...any) error {
	return &EnumError{Enum: name, Err: fmt.Errorf(format, args...)}
}
