package netproto

// Flags is the bitmask in every datagram's first two bytes.
type Flags uint16

const (
	FlagSYN Flags = 0x1
	FlagACK Flags = 0x2
	FlagFIN Flags = 0x4
	FlagDTA Flags = 0x8
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
