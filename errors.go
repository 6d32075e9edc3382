package ideal

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrUnbound       = errors.New("linearization point not bound")
	ErrEmptyShape    = errors.New("cannot infer spatial shape from empty array")
	ErrConfig        = errors.New("invalid echo configuration")
)

// ShapeError reports which array failed a layout check and why.
type ShapeError struct {
	Kind error
	Msg  string
}

func (e *ShapeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ShapeError) Unwrap() error { return e.Kind }

func shapef(format string, args ...any) error {
	return &ShapeError{Kind: ErrShapeMismatch, Msg: fmt.Sprintf(format, args...)}
}
