package netproto

import (
	"github.com/adred-codev/irmo/atom"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// encodeAtomGroups writes atoms as run-length-clustered groups per
// spec.md §6: a header byte (kind<<5 | count-1) followed by count
// same-kind atom bodies, repeated until the slice is exhausted. Runs
// never exceed atom.MaxRunLength (the 5-bit count field's range).
func encodeAtomGroups(b *wire.Buffer, atoms []atom.Atom) {
	i := 0
	for i < len(atoms) {
		kind := atoms[i].Kind()
		j := i + 1
		for j < len(atoms) && j-i < atom.MaxRunLength && atoms[j].Kind() == kind {
			j++
		}
		header := uint8(kind)<<5 | uint8(j-i-1)
		b.WriteU8(header)
		for k := i; k < j; k++ {
			atoms[k].Encode(b)
		}
		i = j
	}
}

// verifyAtomGroups performs the read-only dry-run pass spec.md §4.5 step 2
// requires before any atom is actually decoded: it walks every run header
// and atom body with atom.Verify, confirming the kind is defined and each
// body parses against spec without retaining any of it. It never mutates
// caller-visible state; on success the caller rewinds b's cursor (via
// b.Seek) and performs the real decode with decodeAtomGroups.
func verifyAtomGroups(b *wire.Buffer, spec *schema.Spec) error {
	for !b.Empty() {
		header, err := b.ReadU8()
		if err != nil {
			return err
		}
		kind := atom.Kind(header >> 5)
		count := int(header&0x1f) + 1
		if !kind.Valid() {
			return atom.ErrUnknownKind
		}
		for n := 0; n < count; n++ {
			if err := atom.Verify(kind, b, spec); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeAtomGroups reads atom groups until b is exhausted, in the same
// format encodeAtomGroups writes. spec provides the schema context
// change and method atoms need. Callers are expected to have already run
// verifyAtomGroups over the same span and rewound the cursor; decode
// itself does not re-verify.
func decodeAtomGroups(b *wire.Buffer, spec *schema.Spec) ([]atom.Atom, error) {
	var out []atom.Atom
	for !b.Empty() {
		header, err := b.ReadU8()
		if err != nil {
			return nil, err
		}
		kind := atom.Kind(header >> 5)
		count := int(header&0x1f) + 1
		if !kind.Valid() {
			return nil, atom.ErrUnknownKind
		}
		for n := 0; n < count; n++ {
			a, err := atom.Decode(kind, b, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}
