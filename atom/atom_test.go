package atom

import (
	"testing"

	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

func testSpec(t *testing.T) *schema.Spec {
	t.Helper()
	b := schema.NewBuilder()
	p := b.AddClass("P", "")
	b.AddVariable(p, "x", schema.TypeU32)
	b.AddVariable(p, "s", schema.TypeString)
	b.AddVariable(p, "flag", schema.TypeU8)

	hit := b.AddMethod("hit")
	b.AddArgument(hit, "damage", schema.TypeU16)
	b.AddArgument(hit, "attacker", schema.TypeString)

	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return spec
}

func encodeDecodeRoundTrip(t *testing.T, spec *schema.Spec, a Atom) Atom {
	t.Helper()
	buf := wire.NewBuffer()
	a.Encode(buf)
	if buf.Len() != a.WireLen() {
		t.Fatalf("WireLen() = %d, encoded %d bytes", a.WireLen(), buf.Len())
	}

	r := wire.NewBufferFromBytes(buf.Bytes())
	decoded, err := Decode(a.Kind(), r, spec)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Decode left %d unread bytes", r.Remaining())
	}
	return decoded
}

func TestRoundTripNewObject(t *testing.T) {
	spec := testSpec(t)
	a := &NewObjectAtom{ID: 7, ClassOrdinal: 0}
	got := encodeDecodeRoundTrip(t, spec, a).(*NewObjectAtom)
	if *got != *a {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestRoundTripDestroy(t *testing.T) {
	spec := testSpec(t)
	a := &DestroyAtom{ID: 99}
	got := encodeDecodeRoundTrip(t, spec, a).(*DestroyAtom)
	if *got != *a {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestRoundTripWindowAdvert(t *testing.T) {
	spec := testSpec(t)
	a := &WindowAdvertAtom{MaxBytes: 4096}
	got := encodeDecodeRoundTrip(t, spec, a).(*WindowAdvertAtom)
	if *got != *a {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestRoundTripNull(t *testing.T) {
	spec := testSpec(t)
	a := &NullAtom{}
	_ = encodeDecodeRoundTrip(t, spec, a).(*NullAtom)
}

func TestRoundTripChange(t *testing.T) {
	spec := testSpec(t)
	class, _ := spec.Class("P")

	a := &ChangeAtom{ClassOrdinal: uint8(class.Ordinal), ID: 1}
	a.SetVar(0, len(class.Variables))
	a.SetVar(2, len(class.Variables))
	a.Values = []ChangeValue{
		{VarOrdinal: 0, Value: wire.Value{Type: schema.TypeU32, U32: 42}},
		{VarOrdinal: 2, Value: wire.Value{Type: schema.TypeU8, U8: 1}},
	}

	got := encodeDecodeRoundTrip(t, spec, a).(*ChangeAtom)
	if got.NumSet() != 2 {
		t.Fatalf("NumSet() = %d, want 2", got.NumSet())
	}
	if got.HasVar(1) {
		t.Fatal("variable 1 should not be set")
	}
	if !got.HasVar(0) || !got.HasVar(2) {
		t.Fatal("variables 0 and 2 should be set")
	}
	if len(got.Values) != 2 || got.Values[0].Value.U32 != 42 || got.Values[1].Value.U8 != 1 {
		t.Fatalf("unexpected values: %+v", got.Values)
	}
}

func TestChangeBitmapFaithfulness(t *testing.T) {
	spec := testSpec(t)
	class, _ := spec.Class("P")

	a := &ChangeAtom{ClassOrdinal: uint8(class.Ordinal), ID: 1}
	wantBitmapBytes := (len(class.Variables) + 7) / 8
	a.Bitmap = make([]byte, wantBitmapBytes)

	buf := wire.NewBuffer()
	a.Encode(buf)
	// class ordinal (1) + id (2) + bitmap bytes
	if buf.Len() != 3+wantBitmapBytes {
		t.Fatalf("encoded length = %d, want %d", buf.Len(), 3+wantBitmapBytes)
	}
}

func TestChangeClearVar(t *testing.T) {
	spec := testSpec(t)
	class, _ := spec.Class("P")

	a := &ChangeAtom{ClassOrdinal: uint8(class.Ordinal), ID: 1}
	a.SetVar(0, len(class.Variables))
	a.Values = []ChangeValue{{VarOrdinal: 0, Value: wire.Value{Type: schema.TypeU32, U32: 5}}}

	a.ClearVar(0)
	if a.HasVar(0) {
		t.Fatal("variable 0 should be cleared")
	}
	if len(a.Values) != 0 {
		t.Fatalf("values should be empty, got %+v", a.Values)
	}
	if a.NumSet() != 0 {
		t.Fatalf("NumSet() = %d, want 0", a.NumSet())
	}
}

func TestRoundTripMethod(t *testing.T) {
	spec := testSpec(t)
	hit, _ := spec.Method("hit")

	a := &MethodAtom{
		MethodOrdinal: uint8(hit.Ordinal),
		Args: []wire.Value{
			{Type: schema.TypeU16, U16: 7},
			{Type: schema.TypeString, String: "alice"},
		},
	}
	got := encodeDecodeRoundTrip(t, spec, a).(*MethodAtom)
	if got.MethodOrdinal != a.MethodOrdinal {
		t.Fatalf("MethodOrdinal = %d, want %d", got.MethodOrdinal, a.MethodOrdinal)
	}
	if len(got.Args) != 2 || got.Args[0].U16 != 7 || got.Args[1].String != "alice" {
		t.Fatalf("unexpected args: %+v", got.Args)
	}
}

func TestDecodeNewObjectRejectsUnknownClass(t *testing.T) {
	spec := testSpec(t)
	buf := wire.NewBuffer()
	buf.WriteU16(1)
	buf.WriteU8(99) // no such class ordinal

	r := wire.NewBufferFromBytes(buf.Bytes())
	if _, err := DecodeNewObject(r, spec); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestVerifyThenDecodeFromSamePosition(t *testing.T) {
	spec := testSpec(t)
	class, _ := spec.Class("P")

	a := &ChangeAtom{ClassOrdinal: uint8(class.Ordinal), ID: 1}
	a.SetVar(1, len(class.Variables))
	a.Values = []ChangeValue{{VarOrdinal: 1, Value: wire.Value{Type: schema.TypeString, String: "hi"}}}

	buf := wire.NewBuffer()
	a.Encode(buf)

	r := wire.NewBufferFromBytes(buf.Bytes())
	start := r.Pos()
	if err := Verify(KindChange, r, spec); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	r.Seek(start)
	decoded, err := Decode(KindChange, r, spec)
	if err != nil {
		t.Fatalf("Decode after verify: %v", err)
	}
	ca := decoded.(*ChangeAtom)
	if ca.Values[0].Value.String != "hi" {
		t.Fatalf("unexpected decode: %+v", ca)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	if Kind(99).Valid() {
		t.Fatal("Kind(99) should not be valid")
	}
	if err := Verify(Kind(99), wire.NewBufferFromBytes(nil), nil); err != ErrUnknownKind {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
