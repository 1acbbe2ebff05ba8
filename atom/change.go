package atom

import (
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// ChangeValue pairs a variable ordinal with its new value.
type ChangeValue struct {
	VarOrdinal int
	Value      wire.Value
}

// ChangeAtom carries a set of per-variable value updates for one object.
// Unlike the other kinds it is safe to apply out of order: the target
// guards each variable write by a per-(object, variable) sequence
// watermark (variable_time), so a stale retransmission cannot clobber a
// newer value.
type ChangeAtom struct {
	ClassOrdinal uint8
	ID           uint16
	// Bitmap is the LSB-first changed-variable bitmap as it appears on
	// the wire, ⌈nvars/8⌉ bytes long for the atom's class.
	Bitmap []byte
	// Values holds one entry per set bit, in ascending variable-ordinal
	// order.
	Values []ChangeValue
	// Seq is the atom's stream sequence number, stamped by the engine
	// when the atom enters the receive window. It is not part of the
	// wire encoding (the stream position is carried once per packet,
	// not per atom) but is needed by Apply's variable_time guard, so it
	// travels with the decoded atom.
	Seq uint32
}

func (a *ChangeAtom) Kind() Kind { return KindChange }

func (a *ChangeAtom) WireLen() int {
	n := 1 + 2 + len(a.Bitmap)
	for _, cv := range a.Values {
		n += wire.WireLen(cv.Value)
	}
	return n
}

func (a *ChangeAtom) Encode(b *wire.Buffer) {
	b.WriteU8(a.ClassOrdinal)
	b.WriteU16(a.ID)
	for _, by := range a.Bitmap {
		b.WriteU8(by)
	}
	for _, cv := range a.Values {
		wire.WriteValue(b, cv.Value)
	}
}

// Apply forwards the decoded change to t. A missing object or class
// mismatch leaves the atom for retry: ApplyChange implementations apply
// nothing and return world.ErrNotReady.
func (a *ChangeAtom) Apply(t Target) error {
	return t.ApplyChange(a)
}

// HasVar reports whether variable ordinal i is set in the bitmap.
func (a *ChangeAtom) HasVar(i int) bool {
	if i/8 >= len(a.Bitmap) {
		return false
	}
	return bitSet(a.Bitmap, i)
}

// SetVar marks variable ordinal i as changed, growing the bitmap if
// necessary to cover nvars variables.
func (a *ChangeAtom) SetVar(i, nvars int) {
	need := bitmapBytes(nvars)
	if len(a.Bitmap) < need {
		grown := make([]byte, need)
		copy(grown, a.Bitmap)
		a.Bitmap = grown
	}
	setBit(a.Bitmap, i)
}

// ClearVar unsets variable ordinal i and drops its value entry, if
// present. Used by the send queue when a pending change on this variable
// is superseded before it leaves the window.
func (a *ChangeAtom) ClearVar(i int) {
	if i/8 < len(a.Bitmap) {
		a.Bitmap[i/8] &^= 1 << uint(i%8)
	}
	for k, cv := range a.Values {
		if cv.VarOrdinal == i {
			a.Values = append(a.Values[:k], a.Values[k+1:]...)
			return
		}
	}
}

// NumSet returns the number of bits set in the bitmap.
func (a *ChangeAtom) NumSet() int {
	n := 0
	for i := 0; i < len(a.Bitmap)*8; i++ {
		if bitSet(a.Bitmap, i) {
			n++
		}
	}
	return n
}

// DecodeChange reads a change atom. spec must be non-nil: the bitmap
// width and each set variable's wire type are derived from the atom's
// class.
func DecodeChange(b *wire.Buffer, spec *schema.Spec) (*ChangeAtom, error) {
	classOrd, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	id, err := b.ReadU16()
	if err != nil {
		return nil, err
	}

	class, ok := spec.ClassByOrdinal(int(classOrd))
	if !ok {
		return nil, ErrOutOfRange
	}

	nbytes := bitmapBytes(len(class.Variables))
	bitmap, err := b.ReadBytes(nbytes)
	if err != nil {
		return nil, err
	}
	bitmapCopy := append([]byte(nil), bitmap...)

	var values []ChangeValue
	for i := 0; i < len(class.Variables); i++ {
		if !bitSet(bitmapCopy, i) {
			continue
		}
		v, err := wire.ReadValue(b, class.Variables[i].Type)
		if err != nil {
			return nil, err
		}
		values = append(values, ChangeValue{VarOrdinal: i, Value: v})
	}

	return &ChangeAtom{
		ClassOrdinal: classOrd,
		ID:           id,
		Bitmap:       bitmapCopy,
		Values:       values,
	}, nil
}
