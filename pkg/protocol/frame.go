package protocol

import (
	"errors"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the maximum payload size. Raw framebuffer
	// rectangles dominate frame sizes, so the limit matches MaxAllocation.
	MaxPayloadSize = MaxAllocation
)

// FrameType identifies the type of frame.
type FrameType uint8

// Server → client frames.
const (
	FrameServerInit  FrameType = 0x00 // Handshake: framebuffer geometry and pixel format
	FrameRect        FrameType = 0x01 // One updated framebuffer rectangle
	FrameBatchDone   FrameType = 0x02 // End of an update batch
	FrameCursorPos   FrameType = 0x03 // Remote cursor moved
	FrameCursorShape FrameType = 0x04 // Remote cursor bitmap changed
	FrameClipboard   FrameType = 0x05 // Remote clipboard text
	FrameServerError FrameType = 0x06 // Handshake or session rejection
)

// Client → server frames.
const (
	FrameUpdateRequest FrameType = 0x10 // Request a full or incremental update
	FramePointer       FrameType = 0x11 // Pointer move + button mask
	FrameKey           FrameType = 0x12 // Key press/release
	FrameCutText       FrameType = 0x13 // Local clipboard text
	FrameSetFormat     FrameType = 0x14 // Quality / cursor-mode renegotiation
)

// Bidirectional frames.
const (
	FrameFeature FrameType = 0x20 // Opaque feature message payload
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameServerInit:
		return "ServerInit"
	case FrameRect:
		return "Rect"
	case FrameBatchDone:
		return "BatchDone"
	case FrameCursorPos:
		return "CursorPos"
	case FrameCursorShape:
		return "CursorShape"
	case FrameClipboard:
		return "Clipboard"
	case FrameServerError:
		return "ServerError"
	case FrameUpdateRequest:
		return "UpdateRequest"
	case FramePointer:
		return "Pointer"
	case FrameKey:
		return "Key"
	case FrameCutText:
		return "CutText"
	case FrameSetFormat:
		return "SetFormat"
	case FrameFeature:
		return "Feature"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Payload is compressed (reserved)
	FlagFinal      FrameFlags = 0x02 // Last frame in batch
)

// Has reports whether the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame represents a protocol frame with header and payload.
//
// Wire format (6 bytes header + variable payload):
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//	│                                                             │
//	│  Payload (variable length)                                  │
//	│                                                             │
//	└─────────────────────────────────────────────────────────────┘
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a new frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	buf[2] = byte(length >> 24)
	buf[3] = byte(length >> 16)
	buf[4] = byte(length >> 8)
	buf[5] = byte(length)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes a frame from bytes.
// The input must contain at least the header (6 bytes) and full payload.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}

	ft := FrameType(data[0])
	flags := FrameFlags(data[1])
	length := int(data[2])<<24 | int(data[3])<<16 | int(data[4])<<8 | int(data[5])

	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])

	return &Frame{Type: ft, Flags: flags, Payload: payload}, nil
}
