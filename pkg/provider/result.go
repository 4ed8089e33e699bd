package provider

import (
	"fmt"

	"github.com/vietdv277/clusterbench/pkg/types"
)

// Outcome classifies the result of an ensure or delete call
type Outcome int

const (
	OutcomeOtherError Outcome = iota
	OutcomeCreated
	OutcomeAlreadyExists
	OutcomeDeleted
	OutcomeInUse
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeInUse:
		return "in-use"
	case OutcomeNotFound:
		return "not-found"
	default:
		return "error"
	}
}

// Result is the typed outcome of a provider mutation.
// Err is set for every outcome other than Created and Deleted, and carries the provider error.
type Result struct {
	Outcome Outcome
	Handle  types.ResourceHandle
	Err     error
}

// OK reports whether the resource now exists (created or reused) or is now gone
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeCreated, OutcomeAlreadyExists, OutcomeDeleted:
		return true
	}
	return false
}

// AsError returns an error for unusable outcomes, nil otherwise
func (r Result) AsError() error {
	if r.OK() {
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("%s %s: %w", r.Outcome, r.Handle, r.Err)
	}
	return fmt.Errorf("%s %s", r.Outcome, r.Handle)
}

// Created returns a Created result for h
func Created(h types.ResourceHandle) Result {
	return Result{Outcome: OutcomeCreated, Handle: h}
}

// Deleted returns a Deleted result for h
func Deleted(h types.ResourceHandle) Result {
	return Result{Outcome: OutcomeDeleted, Handle: h}
}

// Failed returns a result with the given outcome and error
func Failed(o Outcome, h types.ResourceHandle, err error) Result {
	return Result{Outcome: o, Handle: h, Err: err}
}
