package wire

import (
	"testing"

	"github.com/jabolina/tangle/types"
)

func TestWasmCallRoundTrip(t *testing.T) {
	payload := EncodeWasmCall(types.WasmCallMessage{
		FunctionIndex: 3,
		Time:          12.5,
		Args:          []float64{1, 2, 3.5},
	})
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != types.KindWasmCall {
		t.Fatalf("Kind = %v, want WasmCall", decoded.Kind)
	}
	m := decoded.WasmCall
	if m.FunctionIndex != 3 || m.Time != 12.5 || len(m.Args) != 3 || m.Args[2] != 3.5 {
		t.Errorf("round trip mismatch: %+v", m)
	}
}

func TestTimeProgressedRoundTrip(t *testing.T) {
	payload := EncodeTimeProgressed(99.25)
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != types.KindTimeProgressed || decoded.TimeProgressed.Time != 99.25 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestSetHeapRoundTrip(t *testing.T) {
	heap := []byte{1, 2, 3, 4, 5}
	payload := EncodeSetHeap(heap)
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != types.KindSetHeap || string(decoded.SetHeap.Heap) != string(heap) {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestPingRewrittenToPong(t *testing.T) {
	ping := EncodePing(123.456)
	pong := RewritePingToPong(ping)

	decoded, err := Decode(pong)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != types.KindPong {
		t.Fatalf("Kind = %v, want Pong", decoded.Kind)
	}
	if decoded.Pong.WallClockMs != 123.456 {
		t.Errorf("Pong.WallClockMs = %v, want 123.456", decoded.Pong.WallClockMs)
	}
	// RewritePingToPong must not mutate its input.
	reDecoded, err := Decode(ping)
	if err != nil {
		t.Fatalf("Decode original: %v", err)
	}
	if reDecoded.Kind != types.KindPing {
		t.Errorf("original ping datagram was mutated: Kind = %v", reDecoded.Kind)
	}
}

func TestRequestStateRoundTrip(t *testing.T) {
	decoded, err := Decode(EncodeRequestState())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind != types.KindRequestState {
		t.Errorf("Kind = %v, want RequestState", decoded.Kind)
	}
}

func TestDecodeEmptyIsMalformed(t *testing.T) {
	if _, err := Decode(nil); err != ErrMalformed {
		t.Errorf("Decode(nil) err = %v, want ErrMalformed", err)
	}
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	full := EncodeWasmCall(types.WasmCallMessage{FunctionIndex: 1, Time: 1, Args: []float64{1}})
	if _, err := Decode(full[:len(full)-3]); err == nil {
		t.Error("Decode(truncated) = nil error, want ErrMalformed")
	}
}
