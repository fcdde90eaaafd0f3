package native

import (
	"errors"
	"strings"
)

var (
	ErrAlreadyExists    = errors.New("native: artifact already exists")
	ErrNotFound         = errors.New("native: artifact not found")
	ErrInvalidState     = errors.New("native: invalid artifact state")
	ErrOwnership        = errors.New("native: artifact belongs to another repository")
	ErrIO               = errors.New("native: staging i/o failed")
	ErrLoad             = errors.New("native: load failed")
	ErrRepositoryClosed = errors.New("native: repository closed")
	ErrInvalidKey       = errors.New("native: invalid artifact key")
)

// Error reports a failed repository operation. Kind is one of the sentinel
// errors above; Err is the underlying cause, if any. errors.Is matches both.
type Error struct {
	Op        string
	Namespace string
	Name      string
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Namespace != "" || e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Namespace)
		b.WriteString("/")
		b.WriteString(e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, key Key, kind error, err error) error {
	return &Error{Op: op, Namespace: key.Namespace, Name: key.Name, Kind: kind, Err: err}
}
