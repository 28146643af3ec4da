package queue

import (
	"errors"
	"fmt"
)

// PanicError wraps a value recovered from a panicking handler
type PanicError struct {
	Value any
	Trace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Stack returns the goroutine stack captured at recovery
func (e *PanicError) Stack() string {
	return e.Trace
}

// StackOf returns the stack carried by err, if any
func StackOf(err error) string {
	var s interface{ Stack() string }
	if errors.As(err, &s) {
		return s.Stack()
	}
	return ""
}
