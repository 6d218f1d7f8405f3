package feature

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Command identifies the action a message requests within one feature.
// Values are private to each provider.
type Command int32

// Message is a feature-tagged payload exchanged between the controller,
// session and helper roles. The router never interprets the arguments;
// only the owning provider does.
type Message struct {
	FeatureUID uuid.UUID                  `cbor:"1,keyasint"`
	Command    Command                    `cbor:"2,keyasint"`
	Args       map[string]cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// NewMessage builds a message for the given feature and command.
func NewMessage(featureUID uuid.UUID, command Command) Message {
	return Message{FeatureUID: featureUID, Command: command}
}

// WithArg returns a copy of the message with one named argument added.
func (m Message) WithArg(name string, value any) Message {
	raw, err := cbor.Marshal(value)
	if err != nil {
		// Arguments are provider-supplied plain data; a marshal failure is
		// a programming error.
		panic(fmt.Sprintf("feature: unencodable argument %q: %v", name, err))
	}
	args := make(map[string]cbor.RawMessage, len(m.Args)+1)
	for k, v := range m.Args {
		args[k] = v
	}
	args[name] = raw
	m.Args = args
	return m
}

// Arg decodes the named argument into out. It returns false when the
// argument is absent.
func (m Message) Arg(name string, out any) (bool, error) {
	raw, ok := m.Args[name]
	if !ok {
		return false, nil
	}
	if err := cbor.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("feature: decoding argument %q: %w", name, err)
	}
	return true, nil
}

// Encode serializes the message for transport.
func (m Message) Encode() ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("feature: encoding message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a message received from the wire.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := cbor.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("feature: decoding message: %w", err)
	}
	return m, nil
}
