// Package wire implements the on-the-wire framing McCache peers use to
// exchange operations: a CBOR-encoded operation tuple, split across one or
// more fixed-size fragments prefixed by a small binary header.
package wire

import (
	"crypto/md5"
	"encoding/ascii85"

	"github.com/fxamacker/cbor/v2"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// wireTuple is the CBOR-serialized shape of a types.WireMessage. CBOR is
// used rather than gob or a hand-rolled binary layout because it is
// self-describing and, critically, distinguishes an absent field from one
// explicitly set to null — a stripped (nil) Value is encoded as CBOR null,
// not as an empty byte string, so a receiver can tell "no value was sent"
// apart from "an empty value was sent".
type wireTuple struct {
	Code        string `cbor:"1,keyasint"`
	TimestampNs int64  `cbor:"2,keyasint"`
	Namespace   string `cbor:"3,keyasint"`
	Key         []byte `cbor:"4,keyasint"`
	CRC         string `cbor:"5,keyasint,omitempty"`
	Value       []byte `cbor:"6,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = m
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Checksum computes the wire CRC for value: an ascii85-encoded MD5 digest,
// matching byte-for-byte what the original McCache implementation sends,
// so mixed-version clusters still agree on integrity. It is deliberately
// not xxhash: xxhash is used elsewhere in this package purely as an
// internal map-key accelerant, never as a wire-visible value.
func Checksum(value []byte) string {
	sum := md5.Sum(value)
	dst := make([]byte, ascii85.MaxEncodedLen(len(sum)))
	n := ascii85.Encode(dst, sum[:])
	return string(dst[:n])
}

// EncodeOperation renders msg as a CBOR byte string, ready for fragmenting.
func EncodeOperation(msg types.WireMessage) ([]byte, error) {
	t := wireTuple{
		Code:        string(msg.Code),
		TimestampNs: msg.TimestampNs,
		Namespace:   msg.Namespace,
		Key:         msg.Key,
		CRC:         msg.CRC,
		Value:       msg.Value,
	}
	return encMode.Marshal(t)
}

// DecodeOperation parses a fully reassembled payload back into a
// types.WireMessage.
func DecodeOperation(payload []byte) (types.WireMessage, error) {
	var t wireTuple
	if err := decMode.Unmarshal(payload, &t); err != nil {
		return types.WireMessage{}, err
	}
	return types.WireMessage{
		Code:        types.OpCode(t.Code),
		TimestampNs: t.TimestampNs,
		Namespace:   t.Namespace,
		Key:         t.Key,
		CRC:         t.CRC,
		Value:       t.Value,
	}, nil
}
