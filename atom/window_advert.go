package atom

import "github.com/adred-codev/irmo/wire"

// WindowAdvertAtom tells the remote peer the sender's local receive-window
// byte cap. Sent at connect time and again whenever the operator changes
// the cap (see netproto.Peer.SetLocalSendWindowMax).
type WindowAdvertAtom struct {
	MaxBytes uint16
}

func (a *WindowAdvertAtom) Kind() Kind   { return KindWindowAdvert }
func (a *WindowAdvertAtom) WireLen() int { return 2 }

func (a *WindowAdvertAtom) Encode(b *wire.Buffer) {
	b.WriteU16(a.MaxBytes)
}

// Apply records maxBytes as the peer's remote_sendwindow_max.
func (a *WindowAdvertAtom) Apply(t Target) error {
	return t.ApplyWindowAdvert(a.MaxBytes)
}

// DecodeWindowAdvert reads the advertised cap.
func DecodeWindowAdvert(b *wire.Buffer) (*WindowAdvertAtom, error) {
	v, err := b.ReadU16()
	if err != nil {
		return nil, err
	}
	return &WindowAdvertAtom{MaxBytes: v}, nil
}
