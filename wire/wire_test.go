package wire

import (
	"strings"
	"testing"

	"github.com/adred-codev/irmo/schema"
)

func TestScalarRoundTrip(t *testing.T) {
	b := NewBuffer()
	b.WriteU8(0xab)
	b.WriteU16(0x1234)
	b.WriteU32(0xdeadbeef)
	b.WriteString("hello")

	r := NewBufferFromBytes(b.Bytes())
	u8, err := r.ReadU8()
	if err != nil || u8 != 0xab {
		t.Fatalf("ReadU8 = %v, %v", u8, err)
	}
	u16, err := r.ReadU16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadU16 = %v, %v", u16, err)
	}
	u32, err := r.ReadU32()
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("ReadU32 = %v, %v", u32, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestReadTruncated(t *testing.T) {
	r := NewBufferFromBytes([]byte{0x01})
	if _, err := r.ReadU32(); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadStringMissingTerminator(t *testing.T) {
	r := NewBufferFromBytes([]byte("no terminator"))
	if _, err := r.ReadString(); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadStringTooLong(t *testing.T) {
	long := strings.Repeat("a", MaxStringLen+10)
	r := NewBufferFromBytes(append([]byte(long), 0))
	if _, err := r.ReadString(); err != ErrStringTooLong {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

func TestSeekRewindsForVerifyThenDecode(t *testing.T) {
	b := NewBuffer()
	b.WriteU16(42)

	r := NewBufferFromBytes(b.Bytes())
	start := r.Pos()
	if err := VerifyValue(r, schema.TypeU16); err != nil {
		t.Fatalf("VerifyValue: %v", err)
	}
	r.Seek(start)
	v, err := ReadValue(r, schema.TypeU16)
	if err != nil || v.U16 != 42 {
		t.Fatalf("ReadValue after rewind = %+v, %v", v, err)
	}
}

func TestWireLen(t *testing.T) {
	cases := []struct {
		v    Value
		want int
	}{
		{Value{Type: schema.TypeU8}, 1},
		{Value{Type: schema.TypeU16}, 2},
		{Value{Type: schema.TypeU32}, 4},
		{Value{Type: schema.TypeString, String: "abc"}, 4},
	}
	for _, c := range cases {
		if got := WireLen(c.v); got != c.want {
			t.Errorf("WireLen(%+v) = %d, want %d", c.v, got, c.want)
		}
	}
}
