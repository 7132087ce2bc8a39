package store

import "fmt"

// CounterError reports a counter key holding a non-integer value.
type CounterError struct {
	Key string
	Err error
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("store: key %s is not a counter: %v", e.Key, e.Err)
}

func (e *CounterError) Unwrap() error { return e.Err }
