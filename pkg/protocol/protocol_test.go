package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarintBoundaries(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, math.MaxUint32, math.MaxUint64}
	buf := make([]byte, MaxVarintLen)
	for _, v := range values {
		n := EncodeUvarint(buf, v)
		got, read := DecodeUvarint(buf[:n])
		if read != n || got != v {
			t.Errorf("uvarint %d: encoded %d bytes, decoded %d after %d bytes", v, n, got, read)
		}
	}
}

func TestSvarintZigZag(t *testing.T) {
	values := []int64{0, -1, 1, -64, 63, math.MinInt64, math.MaxInt64}
	buf := make([]byte, MaxVarintLen)
	for _, v := range values {
		n := EncodeSvarint(buf, v)
		got, read := DecodeSvarint(buf[:n])
		if read != n || got != v {
			t.Errorf("svarint %d: decoded %d after %d/%d bytes", v, got, read, n)
		}
	}
}

func TestDecodeUvarintTruncated(t *testing.T) {
	// High bit set on every byte means the value never terminates.
	if _, n := DecodeUvarint([]byte{0x80, 0x80}); n > 0 {
		t.Errorf("truncated uvarint decoded with n = %d", n)
	}
}

func TestDecoderAllocationGuard(t *testing.T) {
	enc := NewEncoder()
	enc.WriteUvarint(MaxAllocation + 1)
	dec := NewDecoder(enc.Bytes())
	if _, err := dec.ReadLenBytes(); !errors.Is(err, ErrAllocationTooLarge) {
		t.Errorf("ReadLenBytes = %v, want ErrAllocationTooLarge", err)
	}
}

func TestDecoderShortBuffer(t *testing.T) {
	dec := NewDecoder([]byte{0x01})
	if _, err := dec.ReadUint32(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("ReadUint32 on short buffer = %v, want ErrBufferTooShort", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := NewFrame(FrameRect, payload)

	decoded, err := DecodeFrame(frame.Encode())
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Type != FrameRect || !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("decoded frame = %+v", decoded)
	}
}

func TestDecodeFrameRejectsTruncatedPayload(t *testing.T) {
	frame := NewFrame(FrameClipboard, []byte("clip"))
	data := frame.Encode()
	if _, err := DecodeFrame(data[:len(data)-1]); err == nil {
		t.Error("DecodeFrame accepted a truncated frame")
	}
	if _, err := DecodeFrame(data[:3]); err == nil {
		t.Error("DecodeFrame accepted a truncated header")
	}
}

func TestRectUpdateValidatesPixelLength(t *testing.T) {
	rect := &RectUpdate{X: 2, Y: 3, Width: 4, Height: 4}
	rect.Pixels = make([]byte, 4*4*BytesPerPixel)
	decoded, err := DecodeRectUpdate(EncodeRectUpdate(rect))
	if err != nil {
		t.Fatalf("DecodeRectUpdate: %v", err)
	}
	if decoded.X != 2 || decoded.Y != 3 || len(decoded.Pixels) != len(rect.Pixels) {
		t.Fatalf("decoded rect = %+v", decoded)
	}

	// A payload whose pixel data does not match the geometry is invalid.
	rect.Pixels = rect.Pixels[:8]
	if _, err := DecodeRectUpdate(EncodeRectUpdate(rect)); err == nil {
		t.Error("DecodeRectUpdate accepted mismatched pixel length")
	}
}

func TestServerInitRoundTrip(t *testing.T) {
	si := &ServerInit{Width: 1920, Height: 1080, BytesPerPixel: 4, Name: "room-1-pc-7"}
	decoded, err := DecodeServerInit(EncodeServerInit(si))
	if err != nil {
		t.Fatalf("DecodeServerInit: %v", err)
	}
	if *decoded != *si {
		t.Fatalf("decoded init = %+v, want %+v", decoded, si)
	}
}

func TestServerErrorCarriesCode(t *testing.T) {
	se := &ServerError{Code: ErrCodeAuthRequired, Message: "authentication required"}
	decoded, err := DecodeServerError(EncodeServerError(se))
	if err != nil {
		t.Fatalf("DecodeServerError: %v", err)
	}
	if decoded.Code != ErrCodeAuthRequired || decoded.Message != se.Message {
		t.Fatalf("decoded error = %+v", decoded)
	}
}
