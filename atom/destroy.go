package atom

import "github.com/adred-codev/irmo/wire"

// DestroyAtom announces the removal of an object. Applied strictly in
// sequence order.
type DestroyAtom struct {
	ID uint16
}

func (a *DestroyAtom) Kind() Kind   { return KindDestroy }
func (a *DestroyAtom) WireLen() int { return 2 }

func (a *DestroyAtom) Encode(b *wire.Buffer) {
	b.WriteU16(a.ID)
}

// Apply destroys the object on t. t reports an error if no such object
// exists.
func (a *DestroyAtom) Apply(t Target) error {
	return t.ApplyDestroy(a.ID)
}

// DecodeDestroy reads the target id.
func DecodeDestroy(b *wire.Buffer) (*DestroyAtom, error) {
	id, err := b.ReadU16()
	if err != nil {
		return nil, err
	}
	return &DestroyAtom{ID: id}, nil
}
