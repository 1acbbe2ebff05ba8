package atom

import (
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// NewObjectAtom announces the creation of an object with a given id and
// class. It is applied strictly in sequence order (never out-of-order),
// since later change atoms for the same id assume the object exists.
type NewObjectAtom struct {
	ID           uint16
	ClassOrdinal uint8
}

func (a *NewObjectAtom) Kind() Kind   { return KindNewObject }
func (a *NewObjectAtom) WireLen() int { return 2 + 1 }

func (a *NewObjectAtom) Encode(b *wire.Buffer) {
	b.WriteU16(a.ID)
	b.WriteU8(a.ClassOrdinal)
}

// Apply creates the object on t. t reports an error if the id is already
// occupied or the class ordinal is unknown.
func (a *NewObjectAtom) Apply(t Target) error {
	return t.ApplyNewObject(int(a.ClassOrdinal), a.ID)
}

// DecodeNewObject reads id and class ordinal. If spec is non-nil the class
// ordinal is checked against the schema's class count.
func DecodeNewObject(b *wire.Buffer, spec *schema.Spec) (*NewObjectAtom, error) {
	id, err := b.ReadU16()
	if err != nil {
		return nil, err
	}
	classOrd, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	if spec != nil {
		if _, ok := spec.ClassByOrdinal(int(classOrd)); !ok {
			return nil, ErrOutOfRange
		}
	}
	return &NewObjectAtom{ID: id, ClassOrdinal: classOrd}, nil
}
