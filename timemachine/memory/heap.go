package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/jabolina/tangle/types"
)

var order = binary.LittleEndian

// Encode serializes the mem buffer, the full committed log (so a joining
// peer can roll back correctly against calls it never originally saw
// arrive), and the current/target sim time — everything SetHeap (spec §6)
// needs to bring a peer fully up to date. Grounded on the same
// little-endian packing wire.codec uses, since a heap travels over the same
// datagram channel as every other message kind.
func (e *Engine) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}

	writeU32(buf, uint32(len(e.mem.buf)))
	buf.Write(e.mem.buf)

	writeU32(buf, uint32(len(e.log)))
	for _, entry := range e.log {
		writeU32(buf, entry.index)
		writeF64(buf, float64(entry.ts.Time))
		writeU64(buf, uint64(entry.ts.Peer))
		if len(entry.args) > math.MaxUint32 {
			return nil, fmt.Errorf("memory: call has too many args to encode")
		}
		writeU32(buf, uint32(len(entry.args)))
		for _, a := range entry.args {
			writeF64(buf, a)
		}
	}

	writeF64(buf, float64(e.currentSimTime))
	writeF64(buf, float64(e.targetTime))

	return buf.Bytes(), nil
}

// DecodeAndApply replaces this engine's memory, log, and snapshots with a
// previously Encode-d heap: the receiving end of SetHeap. A single snapshot
// covering the whole restored log is taken immediately, since nothing
// before "now" can ever need to be rolled back past the point a peer joined
// at.
func (e *Engine) DecodeAndApply(r io.Reader) error {
	memLen, err := readU32(r)
	if err != nil {
		return err
	}
	mem := make([]byte, memLen)
	if _, err := io.ReadFull(r, mem); err != nil {
		return fmt.Errorf("memory: short heap memory: %w", err)
	}

	logCount, err := readU32(r)
	if err != nil {
		return err
	}
	log := make([]logEntry, 0, logCount)
	for i := uint32(0); i < logCount; i++ {
		index, err := readU32(r)
		if err != nil {
			return err
		}
		t, err := readF64(r)
		if err != nil {
			return err
		}
		peer, err := readU64(r)
		if err != nil {
			return err
		}
		argCount, err := readU32(r)
		if err != nil {
			return err
		}
		args := make([]float64, 0, argCount)
		for j := uint32(0); j < argCount; j++ {
			a, err := readF64(r)
			if err != nil {
				return err
			}
			args = append(args, a)
		}
		fn, ok := e.funcs[index]
		if !ok {
			return fmt.Errorf("memory: heap references unknown function index %d", index)
		}
		log = append(log, logEntry{
			ts:    types.TimeStamp{Time: types.SimTime(t), Peer: types.PeerId(peer)},
			index: index,
			args:  args,
			fn:    fn,
		})
	}

	currentSimTime, err := readF64(r)
	if err != nil {
		return err
	}
	targetTime, err := readF64(r)
	if err != nil {
		return err
	}

	e.mem.restore(mem)
	e.log = log
	e.applied = len(log)
	e.currentSimTime = types.SimTime(currentSimTime)
	e.targetTime = types.SimTime(targetTime)
	e.snapshots = []snapshot{{afterIndex: e.applied, simTime: e.currentSimTime, mem: e.mem.clone()}}
	return nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	order.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	order.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeF64(buf *bytes.Buffer, v float64) {
	writeU64(buf, math.Float64bits(v))
}

func readU32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("memory: short heap read: %w", err)
	}
	return order.Uint32(tmp[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("memory: short heap read: %w", err)
	}
	return order.Uint64(tmp[:]), nil
}

func readF64(r io.Reader) (float64, error) {
	bits, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
