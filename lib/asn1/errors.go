package asn1

import (
	"errors"
	"fmt"
)

// Error kinds shared by every rule set. Engines wrap these with
// positional context; callers match with errors.Is.
var (
	// ErrInvalidTag is returned for an unexpected or malformed tag.
	ErrInvalidTag = errors.New("asn1: invalid tag")

	// ErrLengthMismatch is returned when a declared length disagrees
	// with the available or consumed content.
	ErrLengthMismatch = errors.New("asn1: length mismatch")

	// ErrTruncated is returned when input ends before a complete item
	// was read.
	ErrTruncated = errors.New("asn1: truncated input")

	// ErrConstraintViolation is returned when a value or size falls
	// outside a non-extensible declared range.
	ErrConstraintViolation = errors.New("asn1: constraint violation")

	// ErrNonCanonical is returned for minimal-form or ordering
	// violations under a canonical rule set.
	ErrNonCanonical = errors.New("asn1: non-canonical encoding")

	// ErrUnsupportedVariant is returned for a tag/format combination
	// not in the recognized set for a type.
	ErrUnsupportedVariant = errors.New("asn1: unsupported variant")

	// ErrRecursionLimit is returned when nested constructed values
	// exceed the configured depth bound.
	ErrRecursionLimit = errors.New("asn1: recursion limit exceeded")

	// ErrCharset is returned when a restricted character string holds
	// characters outside its alphabet, or bytes that do not decode.
	ErrCharset = errors.New("asn1: character outside permitted alphabet")
)

// DecodeError carries the position at which a decode failed.
type DecodeError struct {
	Offset  int    // byte offset into the input, or bit offset for packed rules
	Bits    bool   // whether Offset counts bits rather than bytes
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	unit := "offset"
	if e.Bits {
		unit = "bit"
	}
	if e.Err != nil {
		return fmt.Sprintf("asn1: decode error at %s %d: %s: %v", unit, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("asn1: decode error at %s %d: %s", unit, e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError builds a DecodeError at a byte offset.
func NewDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Err: err}
}

// FieldError attributes a nested failure to a specific field or
// element so composition errors point at an exact location.
type FieldError struct {
	Path string // e.g. "certificate.issuer[2]"
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("asn1: field %s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// WrapField prefixes err with a field path segment, extending the path
// of an inner FieldError rather than stacking wrappers.
func WrapField(name string, err error) error {
	if err == nil {
		return nil
	}
	var inner *FieldError
	if errors.As(err, &inner) {
		return &FieldError{Path: name + "." + inner.Path, Err: inner.Err}
	}
	return &FieldError{Path: name, Err: err}
}

// WrapElem prefixes err with an element index path segment.
func WrapElem(name string, index int, err error) error {
	return WrapField(fmt.Sprintf("%s[%d]", name, index), err)
}
