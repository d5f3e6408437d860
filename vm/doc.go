// Package vm evaluates cil method bodies against an in-memory module graph.
//
// This package contains:
//   - Boxed values: int64, float64, string, bool, objects, arrays,
//     by-reference cells and delegates
//   - Static field storage per interpreter
//   - Virtual dispatch by name and signature
//   - Typed catch handlers and finally blocks run on leave
//
// It exists to check patched bodies: a hooked method with no subscribers must
// return what the original returned, and a subscribed delegate must be able
// to cancel the call or alter its result.
package vm
