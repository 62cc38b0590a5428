package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed load.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindDecode    ErrorKind = "decode"
	KindCancelled ErrorKind = "cancelled"
)

// LoadError is the failure side of a LoadResult.
type LoadError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewLoadError builds a LoadError with an optional underlying cause.
func NewLoadError(kind ErrorKind, cause error, format string, args ...any) *LoadError {
	return &LoadError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf reports the ErrorKind carried by err, or "" when err is not a LoadError.
func KindOf(err error) ErrorKind {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// LoadResult is the outcome of one load. Err is nil exactly when the load
// succeeded; Records is nil whenever Err is set.
type LoadResult struct {
	Seq     uint64
	Records []Record
	Err     *LoadError
}

// Success wraps decoded records. A nil slice is normalised to empty.
func Success(records []Record) LoadResult {
	if records == nil {
		records = []Record{}
	}
	return LoadResult{Records: records}
}

// Failure builds a failed result.
func Failure(kind ErrorKind, message string) LoadResult {
	return LoadResult{Err: &LoadError{Kind: kind, Message: message}}
}

// FailureFrom wraps an existing LoadError. Non-LoadError values become decode failures.
func FailureFrom(err error) LoadResult {
	var le *LoadError
	if errors.As(err, &le) {
		return LoadResult{Err: le}
	}
	return LoadResult{Err: &LoadError{Kind: KindDecode, Message: err.Error(), Cause: err}}
}

// OK reports whether the result is the success variant.
func (r LoadResult) OK() bool { return r.Err == nil }
