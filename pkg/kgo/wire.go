package kgo

import (
	"encoding/binary"
	"errors"

	"github.com/pulsewire/kgo/pkg/kmsg"
	"github.com/pulsewire/kgo/pkg/kwire"
)

// writeRequest frames one request the way the teacher's writeRequest does:
// a 4-byte big-endian size prefix, then the header, then the body. The body
// is compressed with codec before framing (spec §3's opaque payload_ref);
// this is the "just enough to compile and test component C" wire shape
// spec §6 calls for, the real wire codec beyond payload compression is out
// of scope.
func writeRequest(clientID string, corrID int32, req kmsg.Request, codec kwire.Codec) ([]byte, error) {
	body, err := kwire.Compress(codec, nil, req.AppendTo(nil))
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, 2+2+4+len(clientID)+4)
	header = appendInt16(header, req.Key())
	header = appendInt16(header, 0) // api version; version negotiation is out of scope
	header = appendInt32(header, corrID)
	header = appendInt32(header, int32(len(clientID)))
	header = append(header, clientID...)

	size := len(header) + len(body)
	frame := make([]byte, 0, 4+size)
	frame = appendInt32(frame, int32(size))
	frame = append(frame, header...)
	frame = append(frame, body...)
	return frame, nil
}

// parseResponseHeader reads the correlation id every response body is
// prefixed with and returns the remaining bytes.
func parseResponseHeader(raw []byte) (corrID int32, rest []byte, err error) {
	if len(raw) < 4 {
		return 0, nil, errShortResponse
	}
	return int32(binary.BigEndian.Uint32(raw)), raw[4:], nil
}

var errShortResponse = errors.New("kgo: short response header")

func appendInt16(dst []byte, v int16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return append(dst, b[:]...)
}

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}
