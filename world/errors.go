package world

import "errors"

// Schema-violation errors: unknown name, type mismatch, value out of range.
var (
	ErrUnknownClass    = errors.New("world: unknown class")
	ErrUnknownVariable = errors.New("world: unknown variable")
	ErrUnknownMethod   = errors.New("world: unknown method")
	ErrTypeMismatch    = errors.New("world: type mismatch")
	ErrValueOutOfRange = errors.New("world: value exceeds variable's type width")
)

// State-violation errors: mutation attempted where the operation is not
// permitted, or an already-removed observer handle is unset again.
var (
	ErrReadOnlyWorld    = errors.New("world: mutation not permitted on a replicated world")
	ErrAlreadyUnset     = errors.New("world: callback handle already unset")
)

// Resource-exhaustion and object-identity errors.
var (
	ErrWorldFull     = errors.New("world: object id space exhausted")
	ErrUnknownObject = errors.New("world: no object with that id")
	ErrDuplicateID   = errors.New("world: object id already occupied")
)

// ErrNotReady is returned by ApplyChange when the target object doesn't
// exist yet or its class doesn't match the atom's. Per spec.md §4.8 this
// is not a protocol violation: the atom is left in place for retry once
// the prerequisite new-object atom has been applied.
var ErrNotReady = errors.New("world: change atom's object not yet present")

// MaxObjects is the id space size; ids are uint16 and wrap at this bound.
const MaxObjects = 65536
