package atom

import (
	"github.com/adred-codev/irmo/wire"
)

// NullAtom is a placeholder: it still occupies a sequence number on the
// wire but carries no data. The send queue neutralises a superseded
// change atom to null rather than removing it, which preserves ordering
// at near-zero cost (see the send-queue coalescing rules).
type NullAtom struct{}

func (NullAtom) Kind() Kind           { return KindNull }
func (NullAtom) WireLen() int         { return 0 }
func (NullAtom) Encode(*wire.Buffer)  {}

// Apply is a no-op.
func (NullAtom) Apply(Target) error { return nil }

// DecodeNull reads a null atom (nothing to read).
func DecodeNull(b *wire.Buffer) (*NullAtom, error) {
	_ = b
	return &NullAtom{}, nil
}
