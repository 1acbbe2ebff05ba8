package atom

import (
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// MethodAtom invokes a schema method with its argument values. Applied
// strictly in sequence order.
type MethodAtom struct {
	MethodOrdinal uint8
	Args          []wire.Value
	// Source is stamped by the protocol engine before Apply is called,
	// identifying the peer the invocation arrived from. It is not part
	// of the wire encoding.
	Source any
}

func (a *MethodAtom) Kind() Kind { return KindMethod }

func (a *MethodAtom) WireLen() int {
	n := 1
	for _, v := range a.Args {
		n += wire.WireLen(v)
	}
	return n
}

func (a *MethodAtom) Encode(b *wire.Buffer) {
	b.WriteU8(a.MethodOrdinal)
	for _, v := range a.Args {
		wire.WriteValue(b, v)
	}
}

// Apply invokes registered observers for the method via t.
func (a *MethodAtom) Apply(t Target) error {
	return t.ApplyMethod(a, a.Source)
}

// DecodeMethod reads a method atom. spec must be non-nil: each argument's
// wire type is derived from the method's declared argument list.
func DecodeMethod(b *wire.Buffer, spec *schema.Spec) (*MethodAtom, error) {
	methodOrd, err := b.ReadU8()
	if err != nil {
		return nil, err
	}

	method, ok := spec.MethodByOrdinal(int(methodOrd))
	if !ok {
		return nil, ErrOutOfRange
	}

	args := make([]wire.Value, len(method.Arguments))
	for i, arg := range method.Arguments {
		v, err := wire.ReadValue(b, arg.Type)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	return &MethodAtom{MethodOrdinal: methodOrd, Args: args}, nil
}
