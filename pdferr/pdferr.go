// Package pdferr defines the error kinds surfaced by pdfmaster operations.
//
// Every failure is reported as an *Error carrying a Kind. Delivery shells
// map the kind to a response: validation and parse errors carry a message
// meant for the user, IO and processing errors are reported generically and
// only logged in full.
package pdferr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindParse
	KindIO
	KindProcessing
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	case KindProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a kind.
var (
	ErrValidation = errors.New("validation error")
	ErrParse      = errors.New("parse error")
	ErrIO         = errors.New("io error")
	ErrProcessing = errors.New("processing error")
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindParse:
		return ErrParse
	case KindIO:
		return ErrIO
	case KindProcessing:
		return ErrProcessing
	}
	return nil
}

// Validation reports bad or missing user input.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// Parse reports a page-range expression that cannot be tokenized.
func Parse(op, format string, args ...any) error {
	return &Error{Kind: KindParse, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IO wraps a read, write or temporary-file failure.
func IO(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// Processing wraps a failure of the underlying document library.
func Processing(op string, err error) error {
	return &Error{Kind: KindProcessing, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message of err when it is a validation or
// parse error, and false otherwise.
func Message(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	if e.Kind != KindValidation && e.Kind != KindParse {
		return "", false
	}
	return e.Msg, true
}
