package model

import "fmt"

// CallErrorKind classifies a failed authorization-setting call.
type CallErrorKind string

const (
	// CallReverted is the recoverable execution-revert signal that drives
	// the update fallback chain.
	CallReverted CallErrorKind = "reverted"
	// CallOther is any other call failure; it aborts the chain immediately.
	CallOther CallErrorKind = "other"
)

// CallError is a classified failure from approve/increaseAllowance/
// decreaseAllowance.
type CallError struct {
	Kind CallErrorKind
	Op   string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// TransportError is a node or network failure outside the
// authorization-setting flow (queries, confirmation waits). It is never
// retried by the engine.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
