// Package atom implements the six wire-level atom kinds that carry every
// state change between peers: null (placeholder), new-object, change,
// destroy, method and window-advertisement. Each kind is its own type
// rather than a tagged union; Atom is the common interface the protocol
// engine drives them through.
package atom

import (
	"errors"
	"fmt"

	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// Kind identifies an atom's wire type. Values match the 3-bit kind field
// packed into a run header (kind<<5 | count-1).
type Kind uint8

const (
	KindNull Kind = iota
	KindNewObject
	KindChange
	KindDestroy
	KindMethod
	KindWindowAdvert
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNewObject:
		return "new-object"
	case KindChange:
		return "change"
	case KindDestroy:
		return "destroy"
	case KindMethod:
		return "method"
	case KindWindowAdvert:
		return "window-advertisement"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the six defined kinds.
func (k Kind) Valid() bool {
	return k < numKinds
}

// MaxRunLength is the largest number of atoms of the same kind that may be
// clustered under a single run header.
const MaxRunLength = 32

// ErrUnknownKind is returned when a run header names an undefined kind.
var ErrUnknownKind = errors.New("atom: unknown kind")

// ErrOutOfRange is returned by a Verify/Decode call when a field refers to
// a class, method, variable or argument ordinal the schema does not have.
var ErrOutOfRange = errors.New("atom: field out of schema range")

// Atom is the common surface every kind implements. Decoding is not part
// of this interface because each kind needs different schema context
// (a change atom needs its class's variable types; a method atom needs
// its method's argument types) — see the package-level Decode* functions.
type Atom interface {
	Kind() Kind
	// WireLen is the encoded payload length, excluding the shared run
	// header byte.
	WireLen() int
	Encode(b *wire.Buffer)
	// Apply applies the atom's effect to t. Called only after the
	// atom has passed Verify and any apply-time preconditions specific
	// to the kind (see each kind's doc comment).
	Apply(t Target) error
}

// Target is the object-space surface atoms apply themselves to. It is
// implemented by world.World; the atom package does not import world to
// avoid a cycle (world depends on schema, atom depends on schema and
// wire; netproto, which ties them together, depends on both).
type Target interface {
	// ApplyNewObject creates an object with the given id and class
	// ordinal. Returns an error if the id is already occupied or the
	// class ordinal is unknown.
	ApplyNewObject(classOrdinal int, id uint16) error
	// ApplyDestroy destroys the object with the given id. Returns an
	// error if no such object exists.
	ApplyDestroy(id uint16) error
	// ApplyChange applies a decoded change atom. A missing object or a
	// class mismatch is reported as world.ErrNotReady without applying
	// anything, so the atom is left in the receive window for retry.
	ApplyChange(c *ChangeAtom) error
	// ApplyMethod invokes registered observers for the method, with
	// source carrying an implementation-defined description of the
	// originating peer.
	ApplyMethod(m *MethodAtom, source any) error
	// ApplyWindowAdvert records the peer's advertised receive window
	// cap. Implemented by the peer, not the world, in practice; present
	// on Target for uniformity with the other kinds.
	ApplyWindowAdvert(maxBytes uint16) error
}

// bitmapBytes returns the number of bytes needed for a bitmap covering n
// variables.
func bitmapBytes(n int) int {
	return (n + 7) / 8
}

// bitSet reports whether bit i is set in an LSB-first bitmap.
func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<uint(i%8)) != 0
}

// setBit sets bit i in an LSB-first bitmap.
func setBit(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << uint(i%8)
}

// Verify performs a read-only bounds-and-schema check of an atom of the
// given kind at b's current position, per spec.md §4.5 step 2: decode the
// atom, discard the result, and let the caller rewind the cursor
// afterwards. spec may be nil for kinds that need no schema context (null,
// new-object, destroy, window-advertisement); it must be non-nil for
// change and method atoms.
func Verify(k Kind, b *wire.Buffer, spec *schema.Spec) error {
	switch k {
	case KindNull:
		_, err := DecodeNull(b)
		return err
	case KindNewObject:
		_, err := DecodeNewObject(b, spec)
		return err
	case KindChange:
		_, err := DecodeChange(b, spec)
		return err
	case KindDestroy:
		_, err := DecodeDestroy(b)
		return err
	case KindMethod:
		_, err := DecodeMethod(b, spec)
		return err
	case KindWindowAdvert:
		_, err := DecodeWindowAdvert(b)
		return err
	default:
		return ErrUnknownKind
	}
}

// Decode decodes one atom of the given kind from b.
func Decode(k Kind, b *wire.Buffer, spec *schema.Spec) (Atom, error) {
	switch k {
	case KindNull:
		return DecodeNull(b)
	case KindNewObject:
		return DecodeNewObject(b, spec)
	case KindChange:
		return DecodeChange(b, spec)
	case KindDestroy:
		return DecodeDestroy(b)
	case KindMethod:
		return DecodeMethod(b, spec)
	case KindWindowAdvert:
		return DecodeWindowAdvert(b)
	default:
		return nil, ErrUnknownKind
	}
}
