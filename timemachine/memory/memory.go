package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Memory is a flat byte buffer standing in for a module's linear memory.
// Grounded on the teacher's pkg/mcast/types/storage.go InMemoryStorage (a
// plain map-backed store behind a narrow read/write contract), generalized
// from key/value entries to an addressed byte buffer since ReadMemory and
// ReadString (spec §6) are address/length based.
type Memory struct {
	buf []byte
}

func newMemory(size int) *Memory {
	return &Memory{buf: make([]byte, size)}
}

func (m *Memory) clone() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}

func (m *Memory) restore(snapshot []byte) {
	m.buf = make([]byte, len(snapshot))
	copy(m.buf, snapshot)
}

func (m *Memory) bounds(addr, length uint32) error {
	if uint64(addr)+uint64(length) > uint64(len(m.buf)) {
		return fmt.Errorf("memory: out of bounds read addr=%d length=%d size=%d", addr, length, len(m.buf))
	}
	return nil
}

// ReadMemory returns a copy of the [addr, addr+length) region.
func (m *Memory) ReadMemory(addr, length uint32) ([]byte, error) {
	if err := m.bounds(addr, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[addr:addr+length])
	return out, nil
}

// ReadString returns the [addr, addr+length) region decoded as UTF-8.
func (m *Memory) ReadString(addr, length uint32) (string, error) {
	raw, err := m.ReadMemory(addr, length)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteFloat64 stores v as 8 little-endian bytes at addr, growing the
// buffer if needed. Demo module functions (see demo.go) use this as their
// only means of mutating state, so every mutation is trivially
// deterministic and snapshot-safe.
func (m *Memory) WriteFloat64(addr uint32, v float64) {
	m.ensure(addr + 8)
	binary.LittleEndian.PutUint64(m.buf[addr:addr+8], math.Float64bits(v))
}

func (m *Memory) ReadFloat64(addr uint32) float64 {
	if err := m.bounds(addr, 8); err != nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(m.buf[addr : addr+8]))
}

func (m *Memory) ensure(size uint32) {
	if uint32(len(m.buf)) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
}
