package orm

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindWrapped
	KindIsEmpty
	KindConvert
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnexpected:
		return "unexpected behavior"
	case KindWrapped:
		return "underlying error"
	case KindIsEmpty:
		return "empty result"
	case KindConvert:
		return "conversion error"
	default:
		return "unknown error"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrUnexpected = &Error{Kind: KindUnexpected}
	ErrWrapped    = &Error{Kind: KindWrapped}
	ErrIsEmpty    = &Error{Kind: KindIsEmpty}
	ErrConvert    = &Error{Kind: KindConvert}
)

// Error is the storage error taxonomy shared by the translator, the facade
// and the history decorator.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Unexpectedf reports a broken invariant. The returned error carries the
// caller's stack.
func Unexpectedf(format string, args ...any) error {
	return goerrors.Wrap(&Error{Kind: KindUnexpected, Message: fmt.Sprintf(format, args...)}, 1)
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return &Error{Kind: KindWrapped, Err: err}
}

func Emptyf(format string, args ...any) error {
	return &Error{Kind: KindIsEmpty, Message: fmt.Sprintf(format, args...)}
}

func Convertf(format string, args ...any) error {
	return &Error{Kind: KindConvert, Message: fmt.Sprintf(format, args...)}
}

// Stack returns the stack recorded by Unexpectedf, or "" when err carries none.
func Stack(err error) string {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return string(ge.Stack())
	}
	return ""
}
