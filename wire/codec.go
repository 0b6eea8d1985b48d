// Package wire implements the binary framing for the six Tangle wire
// message kinds (spec §6): a single kind byte followed by a
// little-endian-packed payload. Grounded on the *shape* of the teacher's
// core/transport.go encode-on-send/decode-on-receive split, but using
// encoding/binary instead of encoding/json because the wire format is
// specified byte-for-byte (u32/f64/u8 little-endian) rather than left to a
// generic serializer.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/jabolina/tangle/types"
)

var order = binary.LittleEndian

// ErrMalformed is returned for any short read or invalid field; per spec §7
// the caller drops the message and continues, it never propagates further.
var ErrMalformed = fmt.Errorf("wire: malformed payload")

// EncodeWasmCall frames a WasmCall datagram.
func EncodeWasmCall(m types.WasmCallMessage) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(types.KindWasmCall))
	writeU32(buf, m.FunctionIndex)
	writeF64(buf, float64(m.Time))
	if len(m.Args) > 255 {
		panic("wire: WasmCall supports at most 255 args")
	}
	buf.WriteByte(byte(len(m.Args)))
	for _, a := range m.Args {
		writeF64(buf, a)
	}
	return buf.Bytes()
}

func decodeWasmCall(r *bytes.Reader) (types.WasmCallMessage, error) {
	var m types.WasmCallMessage
	idx, err := readU32(r)
	if err != nil {
		return m, err
	}
	t, err := readF64(r)
	if err != nil {
		return m, err
	}
	count, err := r.ReadByte()
	if err != nil {
		return m, ErrMalformed
	}
	args := make([]float64, 0, count)
	for i := byte(0); i < count; i++ {
		a, err := readF64(r)
		if err != nil {
			return m, err
		}
		args = append(args, a)
	}
	m.FunctionIndex = idx
	m.Time = types.SimTime(t)
	m.Args = args
	return m, nil
}

// EncodeTimeProgressed frames a TimeProgressed datagram.
func EncodeTimeProgressed(t types.SimTime) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(types.KindTimeProgressed))
	writeF64(buf, float64(t))
	return buf.Bytes()
}

func decodeTimeProgressed(r *bytes.Reader) (types.TimeProgressedMessage, error) {
	t, err := readF64(r)
	return types.TimeProgressedMessage{Time: types.SimTime(t)}, err
}

// EncodeRequestState frames a RequestState datagram (empty payload).
func EncodeRequestState() []byte {
	return []byte{byte(types.KindRequestState)}
}

// EncodeSetProgram frames a reserved SetProgram datagram.
func EncodeSetProgram(binaryBytes []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(types.KindSetProgram))
	buf.Write(binaryBytes)
	return buf.Bytes()
}

func decodeSetProgram(r *bytes.Reader) (types.SetProgramMessage, error) {
	rest, err := io.ReadAll(r)
	if err != nil {
		return types.SetProgramMessage{}, ErrMalformed
	}
	return types.SetProgramMessage{Binary: rest}, nil
}

// EncodeSetHeap frames a SetHeap datagram carrying an opaque heap blob.
func EncodeSetHeap(heap []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(types.KindSetHeap))
	buf.Write(heap)
	return buf.Bytes()
}

func decodeSetHeap(r *bytes.Reader) (types.SetHeapMessage, error) {
	rest, err := io.ReadAll(r)
	if err != nil {
		return types.SetHeapMessage{}, ErrMalformed
	}
	return types.SetHeapMessage{Heap: rest}, nil
}

// EncodePing frames a Ping datagram carrying the sender's wall-clock ms.
func EncodePing(wallClockMs float64) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(types.KindPing))
	writeF64(buf, wallClockMs)
	return buf.Bytes()
}

func decodePing(r *bytes.Reader) (types.PingMessage, error) {
	v, err := readF64(r)
	return types.PingMessage{WallClockMs: v}, err
}

func decodePong(r *bytes.Reader) (types.PongMessage, error) {
	v, err := readF64(r)
	return types.PongMessage{WallClockMs: v}, err
}

// RewritePingToPong rewrites the kind byte of a received Ping datagram to
// Pong in place and returns it, echoing the embedded timestamp untouched,
// exactly per spec §4.3's Ping handler.
func RewritePingToPong(pingDatagram []byte) []byte {
	out := make([]byte, len(pingDatagram))
	copy(out, pingDatagram)
	if len(out) > 0 {
		out[0] = byte(types.KindPong)
	}
	return out
}

// Decoded is the result of Decode: exactly one of its fields is set,
// matching Kind.
type Decoded struct {
	Kind           types.MessageKind
	WasmCall       types.WasmCallMessage
	TimeProgressed types.TimeProgressedMessage
	SetHeap        types.SetHeapMessage
	SetProgram     types.SetProgramMessage
	Ping           types.PingMessage
	Pong           types.PongMessage
}

// Decode parses a datagram's kind byte and payload. A short or invalid
// payload returns ErrMalformed; per spec §7 the caller drops the message.
func Decode(datagram []byte) (Decoded, error) {
	if len(datagram) == 0 {
		return Decoded{}, ErrMalformed
	}
	kind := types.MessageKind(datagram[0])
	r := bytes.NewReader(datagram[1:])
	var out Decoded
	out.Kind = kind
	var err error
	switch kind {
	case types.KindWasmCall:
		out.WasmCall, err = decodeWasmCall(r)
	case types.KindTimeProgressed:
		out.TimeProgressed, err = decodeTimeProgressed(r)
	case types.KindRequestState:
		// empty payload, nothing to decode
	case types.KindSetProgram:
		out.SetProgram, err = decodeSetProgram(r)
	case types.KindSetHeap:
		out.SetHeap, err = decodeSetHeap(r)
	case types.KindPing:
		out.Ping, err = decodePing(r)
	case types.KindPong:
		out.Pong, err = decodePong(r)
	default:
		return Decoded{}, ErrMalformed
	}
	if err != nil {
		return Decoded{}, err
	}
	return out, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	order.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeF64(buf *bytes.Buffer, v float64) {
	var tmp [8]byte
	order.PutUint64(tmp[:], math.Float64bits(v))
	buf.Write(tmp[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, ErrMalformed
	}
	return order.Uint32(tmp[:]), nil
}

func readF64(r *bytes.Reader) (float64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, ErrMalformed
	}
	return math.Float64frombits(order.Uint64(tmp[:])), nil
}
