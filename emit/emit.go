// Package emit holds the single-purpose generators used by the hooking
// protocol. Each emitter is constructed with the inputs it needs and exposes
// one operation, Produce.
//
// Emitters do not touch method bodies. The only side effect any of them has
// is Callback registering the callback type it creates under its container.
package emit

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
)

var log = commonlog.GetLogger("modder.emit")

// Emitter produces one artifact.
type Emitter[T any] interface {
	Produce() (T, error)
}

// Options selects how a hook is shaped.
type Options struct {
	// ReferenceParameters passes value-typed parameters by reference.
	ReferenceParameters bool
	// AlterResult appends a by-reference result parameter to the callback of
	// a non-void method.
	AlterResult bool
	// Cancellable makes the callback return a boolean; false skips the
	// original body.
	Cancellable bool
}

// Compile-time checks.
var (
	_ Emitter[*Signature]    = (*CallbackSignature)(nil)
	_ Emitter[*cil.Type]     = (*Delegate)(nil)
	_ Emitter[*cil.Type]     = (*Callback)(nil)
	_ Emitter[*cil.Fragment] = (*HookCall)(nil)
	_ Emitter[*cil.Fragment] = (*RelocatedCall)(nil)
	_ Emitter[*cil.Type]     = (*Interface)(nil)
)
