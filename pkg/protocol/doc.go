// Package protocol implements the binary framebuffer streaming protocol
// spoken between a warden controller and a warden server.
//
// The protocol runs over a single WebSocket connection carrying binary
// frames. Each frame has a fixed 6-byte header (type, flags, payload length)
// followed by a varint-encoded payload. The server pushes framebuffer
// rectangles, cursor updates, clipboard text and feature data; the client
// sends update requests, input events, format changes and feature data.
//
// The Client type implements remote.Link and is normally obtained through
// Transport.Connect. Callback hooks are bound to the client at handshake
// time and fire synchronously on the goroutine that calls ProcessMessage.
package protocol
