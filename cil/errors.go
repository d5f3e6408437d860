package cil

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error is fatal to the current run; callers test the
// class with errors.Is.
var (
	// ErrConfiguration covers invalid flags, unsupported option
	// combinations and queries that expected exactly one match.
	ErrConfiguration = errors.New("configuration error")

	// ErrResolution indicates a member, type or module that cannot be
	// located by name.
	ErrResolution = errors.New("resolution error")

	// ErrDescriptor indicates an instruction descriptor that cannot be
	// turned into a concrete instruction.
	ErrDescriptor = errors.New("descriptor error")

	// ErrIO wraps load and write failures.
	ErrIO = errors.New("i/o error")

	// ErrUnbalanced indicates a body whose stack depth does not balance.
	ErrUnbalanced = errors.New("unbalanced stack")
)

// DescriptorError describes why a descriptor could not be built.
type DescriptorError struct {
	Position int    // index of the concrete instruction being built
	Message  string // description of the failure
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor %d: %s", e.Position, e.Message)
}

func (e *DescriptorError) Unwrap() error { return ErrDescriptor }

// VerifyError reports a stack-balance violation in a method body.
type VerifyError struct {
	Method  string // full name of the method
	Index   int    // instruction index, -1 when not tied to one instruction
	Message string
}

func (e *VerifyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("%s: IL index %d: %s", e.Method, e.Index, e.Message)
}

func (e *VerifyError) Unwrap() error { return ErrUnbalanced }
