package protocol

import "fmt"

// BytesPerPixel is the only pixel layout the client accepts: 32-bit RGBA,
// 8 bits per sample. A server announcing anything else fails the handshake.
const BytesPerPixel = 4

// ServerInit is the first frame a server sends after the WebSocket upgrade.
type ServerInit struct {
	Width         int
	Height        int
	BytesPerPixel int
	Name          string // server-side desktop name, informational
}

// EncodeServerInit encodes a ServerInit payload.
func EncodeServerInit(si *ServerInit) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(si.Width))
	e.WriteUvarint(uint64(si.Height))
	e.WriteUvarint(uint64(si.BytesPerPixel))
	e.WriteString(si.Name)
	return e.Bytes()
}

// DecodeServerInit decodes a ServerInit payload.
func DecodeServerInit(payload []byte) (*ServerInit, error) {
	d := NewDecoder(payload)
	width, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("server init width: %w", err)
	}
	height, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("server init height: %w", err)
	}
	bpp, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("server init pixel format: %w", err)
	}
	name, err := d.ReadString()
	if err != nil {
		return nil, fmt.Errorf("server init name: %w", err)
	}
	return &ServerInit{
		Width:         int(width),
		Height:        int(height),
		BytesPerPixel: int(bpp),
		Name:          name,
	}, nil
}

// RectUpdate carries one updated framebuffer rectangle as raw RGBA pixels.
type RectUpdate struct {
	X, Y          int
	Width, Height int
	Pixels        []byte // Width*Height*BytesPerPixel bytes, row-major
}

// EncodeRectUpdate encodes a RectUpdate payload.
func EncodeRectUpdate(r *RectUpdate) []byte {
	e := NewEncoderWithCap(16 + len(r.Pixels))
	e.WriteUvarint(uint64(r.X))
	e.WriteUvarint(uint64(r.Y))
	e.WriteUvarint(uint64(r.Width))
	e.WriteUvarint(uint64(r.Height))
	e.WriteLenBytes(r.Pixels)
	return e.Bytes()
}

// DecodeRectUpdate decodes a RectUpdate payload. The pixel length must match
// the announced geometry exactly.
func DecodeRectUpdate(payload []byte) (*RectUpdate, error) {
	d := NewDecoder(payload)
	x, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("rect x: %w", err)
	}
	y, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("rect y: %w", err)
	}
	w, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("rect width: %w", err)
	}
	h, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("rect height: %w", err)
	}
	pixels, err := d.ReadLenBytes()
	if err != nil {
		return nil, fmt.Errorf("rect pixels: %w", err)
	}
	if uint64(len(pixels)) != w*h*BytesPerPixel {
		return nil, fmt.Errorf("rect pixels: got %d bytes, want %d", len(pixels), w*h*BytesPerPixel)
	}
	return &RectUpdate{
		X: int(x), Y: int(y),
		Width: int(w), Height: int(h),
		Pixels: pixels,
	}, nil
}

// CursorPos reports the remote cursor position.
type CursorPos struct {
	X, Y int
}

// EncodeCursorPos encodes a CursorPos payload.
func EncodeCursorPos(p *CursorPos) []byte {
	e := NewEncoder()
	e.WriteSvarint(int64(p.X))
	e.WriteSvarint(int64(p.Y))
	return e.Bytes()
}

// DecodeCursorPos decodes a CursorPos payload.
func DecodeCursorPos(payload []byte) (*CursorPos, error) {
	d := NewDecoder(payload)
	x, err := d.ReadSvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor x: %w", err)
	}
	y, err := d.ReadSvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor y: %w", err)
	}
	return &CursorPos{X: int(x), Y: int(y)}, nil
}

// CursorShape carries a new cursor bitmap with its hotspot.
type CursorShape struct {
	Width, Height int
	HotX, HotY    int
	Pixels        []byte // Width*Height*BytesPerPixel RGBA bytes
}

// EncodeCursorShape encodes a CursorShape payload.
func EncodeCursorShape(s *CursorShape) []byte {
	e := NewEncoderWithCap(16 + len(s.Pixels))
	e.WriteUvarint(uint64(s.Width))
	e.WriteUvarint(uint64(s.Height))
	e.WriteUvarint(uint64(s.HotX))
	e.WriteUvarint(uint64(s.HotY))
	e.WriteLenBytes(s.Pixels)
	return e.Bytes()
}

// DecodeCursorShape decodes a CursorShape payload.
func DecodeCursorShape(payload []byte) (*CursorShape, error) {
	d := NewDecoder(payload)
	w, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor shape width: %w", err)
	}
	h, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor shape height: %w", err)
	}
	hx, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor hotspot x: %w", err)
	}
	hy, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("cursor hotspot y: %w", err)
	}
	pixels, err := d.ReadLenBytes()
	if err != nil {
		return nil, fmt.Errorf("cursor shape pixels: %w", err)
	}
	if uint64(len(pixels)) != w*h*BytesPerPixel {
		return nil, fmt.Errorf("cursor shape pixels: got %d bytes, want %d", len(pixels), w*h*BytesPerPixel)
	}
	return &CursorShape{
		Width: int(w), Height: int(h),
		HotX: int(hx), HotY: int(hy),
		Pixels: pixels,
	}, nil
}

// UpdateRequest asks the server for a framebuffer update.
type UpdateRequest struct {
	Incremental bool
}

// EncodeUpdateRequest encodes an UpdateRequest payload.
func EncodeUpdateRequest(r *UpdateRequest) []byte {
	e := NewEncoder()
	e.WriteBool(r.Incremental)
	return e.Bytes()
}

// DecodeUpdateRequest decodes an UpdateRequest payload.
func DecodeUpdateRequest(payload []byte) (*UpdateRequest, error) {
	d := NewDecoder(payload)
	incremental, err := d.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	return &UpdateRequest{Incremental: incremental}, nil
}

// PointerEvent carries a pointer position and button mask.
type PointerEvent struct {
	X, Y    int
	Buttons int
}

// EncodePointerEvent encodes a PointerEvent payload.
func EncodePointerEvent(p *PointerEvent) []byte {
	e := NewEncoder()
	e.WriteSvarint(int64(p.X))
	e.WriteSvarint(int64(p.Y))
	e.WriteUvarint(uint64(p.Buttons))
	return e.Bytes()
}

// DecodePointerEvent decodes a PointerEvent payload.
func DecodePointerEvent(payload []byte) (*PointerEvent, error) {
	d := NewDecoder(payload)
	x, err := d.ReadSvarint()
	if err != nil {
		return nil, fmt.Errorf("pointer x: %w", err)
	}
	y, err := d.ReadSvarint()
	if err != nil {
		return nil, fmt.Errorf("pointer y: %w", err)
	}
	buttons, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("pointer buttons: %w", err)
	}
	return &PointerEvent{X: int(x), Y: int(y), Buttons: int(buttons)}, nil
}

// KeyEvent carries a key press or release.
type KeyEvent struct {
	Code    uint32
	Pressed bool
}

// EncodeKeyEvent encodes a KeyEvent payload.
func EncodeKeyEvent(k *KeyEvent) []byte {
	e := NewEncoder()
	e.WriteUint32(k.Code)
	e.WriteBool(k.Pressed)
	return e.Bytes()
}

// DecodeKeyEvent decodes a KeyEvent payload.
func DecodeKeyEvent(payload []byte) (*KeyEvent, error) {
	d := NewDecoder(payload)
	code, err := d.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("key code: %w", err)
	}
	pressed, err := d.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("key state: %w", err)
	}
	return &KeyEvent{Code: code, Pressed: pressed}, nil
}

// SetFormat renegotiates stream quality and cursor handling.
type SetFormat struct {
	Quality      int // 0 (lowest) .. 9 (highest)
	RemoteCursor bool
}

// EncodeSetFormat encodes a SetFormat payload.
func EncodeSetFormat(f *SetFormat) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(f.Quality))
	e.WriteBool(f.RemoteCursor)
	return e.Bytes()
}

// DecodeSetFormat decodes a SetFormat payload.
func DecodeSetFormat(payload []byte) (*SetFormat, error) {
	d := NewDecoder(payload)
	quality, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("format quality: %w", err)
	}
	remoteCursor, err := d.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("format cursor mode: %w", err)
	}
	return &SetFormat{Quality: int(quality), RemoteCursor: remoteCursor}, nil
}

// ServerError carries a rejection reason during the handshake.
type ServerError struct {
	Code    int
	Message string
}

// Server error codes.
const (
	ErrCodeAuthRequired = 1 // Controller key not accepted
	ErrCodeBusy         = 2 // Server refuses additional sessions
	ErrCodeInternal     = 3 // Unspecified server-side failure
)

// EncodeServerError encodes a ServerError payload.
func EncodeServerError(se *ServerError) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(se.Code))
	e.WriteString(se.Message)
	return e.Bytes()
}

// DecodeServerError decodes a ServerError payload.
func DecodeServerError(payload []byte) (*ServerError, error) {
	d := NewDecoder(payload)
	code, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("server error code: %w", err)
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, fmt.Errorf("server error message: %w", err)
	}
	return &ServerError{Code: int(code), Message: message}, nil
}
