// Package cil models compiled modules of a stack-based bytecode format with a
// metadata-driven object model: modules own types, types own fields, methods,
// properties, events and nested types, and methods own a body of
// instructions and local variables.
//
// The package also provides the instruction construction layer used by the
// emitters: descriptors are flattened into fragments, forward labels are
// resolved to instruction indexes, and fragments are merged into method bodies
// while every branch and exception-region reference stays attached to the
// instruction it pointed at.
//
// Transfer targets are indexes into the owning body. Body edits shift those
// indexes centrally, so callers never patch instruction links by hand.
package cil
