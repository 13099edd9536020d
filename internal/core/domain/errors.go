package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindError carries a client-facing message while still matching its kind with errors.Is.
type KindError struct {
	Kind    error
	Message string
}

func (e *KindError) Error() string { return e.Message }

func (e *KindError) Unwrap() error { return e.Kind }

func NewKindError(kind error, format string, args ...any) error {
	return &KindError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
