// codec.go builds, encodes, validates and decodes protocol messages.
// Decoding reads every field explicitly at a checked offset; buffers from
// the peer are never reinterpreted in place.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

var order = binary.NativeEndian

// Header field offsets.
const (
	offMagic  = 0
	offType   = 4
	offLength = 8

	offConfigureCount   = HeaderSize
	offConfigureEntries = HeaderSize + configureCountSize
	offLaunchName       = HeaderSize
)

// BuildConfigureMessage builds a Configure message carrying entries.
// It fails with ErrCapacityExceeded when more than MaxConfigurations
// entries are supplied.
func BuildConfigureMessage(entries []GameConfiguration) (*ConfigureMessage, error) {
	if len(entries) > MaxConfigurations {
		return nil, fmt.Errorf("%w: %d entries, maximum is %d", ErrCapacityExceeded, len(entries), MaxConfigurations)
	}

	configs := make([]GameConfiguration, len(entries))
	for i, e := range entries {
		configs[i] = GameConfiguration{
			Name:    truncate(e.Name, NameCapacity),
			Command: truncate(e.Command, CommandCapacity),
		}
	}

	length := uint64(HeaderSize + configureCountSize + len(entries)*GameConfigurationSize)
	return &ConfigureMessage{
		Header:         NewHeader(TypeConfigure, length),
		Count:          uint8(len(entries)),
		Configurations: configs,
	}, nil
}

// BuildLaunchMessage builds a Launch message for name. Names longer than
// the field capacity are truncated.
func BuildLaunchMessage(name string) *LaunchMessage {
	return &LaunchMessage{
		Header: NewHeader(TypeLaunch, LaunchMessageSize),
		Name:   truncate(name, NameCapacity),
	}
}

// truncate shortens s so that it fits a NUL-terminated field of the given
// capacity. A NUL inside s also ends the string, matching what a decoder
// would see.
func truncate(s string, capacity int) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > capacity-1 {
		s = s[:capacity-1]
	}
	return s
}

// Encode returns the wire bytes of the header.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	h.put(b)
	return b
}

func (h Header) put(b []byte) {
	order.PutUint32(b[offMagic:], h.Magic)
	order.PutUint32(b[offType:], uint32(h.Type))
	order.PutUint64(b[offLength:], h.Length)
}

// Encode returns the complete wire form of m, header included.
func Encode(m Message) []byte {
	switch msg := m.(type) {
	case *ConfigureMessage:
		return encodeConfigure(msg)
	case *LaunchMessage:
		return encodeLaunch(msg)
	default:
		panic(fmt.Sprintf("protocol: unexpected message %T", m))
	}
}

func encodeConfigure(m *ConfigureMessage) []byte {
	valid := m.Valid()
	h := m.Header
	h.Length = uint64(offConfigureEntries + len(valid)*GameConfigurationSize)

	b := make([]byte, h.Length)
	h.put(b)
	b[offConfigureCount] = uint8(len(valid))
	for i, c := range valid {
		off := offConfigureEntries + i*GameConfigurationSize
		putString(b[off:off+NameCapacity], c.Name)
		putString(b[off+NameCapacity:off+GameConfigurationSize], c.Command)
	}
	return b
}

func encodeLaunch(m *LaunchMessage) []byte {
	h := m.Header
	h.Length = LaunchMessageSize

	b := make([]byte, LaunchMessageSize)
	h.put(b)
	putString(b[offLaunchName:offLaunchName+NameCapacity], m.Name)
	return b
}

// putString copies s into field, leaving at least one trailing NUL.
func putString(field []byte, s string) {
	copy(field[:len(field)-1], truncate(s, len(field)))
}

// getString reads a NUL-terminated string out of a fixed-capacity field.
func getString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

// ValidateHeader decodes the first HeaderSize bytes of b and checks the
// magic, the type discriminator and the declared length, in that order.
func ValidateHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}

	h := Header{
		Magic:  order.Uint32(b[offMagic:]),
		Type:   MessageType(order.Uint32(b[offType:])),
		Length: order.Uint64(b[offLength:]),
	}

	if h.Magic != MessageMagic {
		return h, fmt.Errorf("%w: 0x%08X", ErrBadMagic, h.Magic)
	}
	if !h.Type.Valid() {
		return h, fmt.Errorf("%w: %s", ErrUnknownType, h.Type)
	}
	if h.Length < HeaderSize {
		return h, fmt.Errorf("%w: %d", ErrLengthTooShort, h.Length)
	}
	return h, nil
}

// CheckLength rejects headers declaring more than MaxMessageSize bytes.
// Callers run it before allocating a buffer for the rest of the message.
func CheckLength(h Header) error {
	if h.Length > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrOversizedMessage, h.Length, MaxMessageSize)
	}
	return nil
}

// Decode interprets b, which must hold exactly h.Length bytes starting with
// the header, according to h.Type. The header must already have passed
// ValidateHeader.
func Decode(h Header, b []byte) (Message, error) {
	if uint64(len(b)) != h.Length {
		return nil, fmt.Errorf("%w: have %d bytes, header says %d", ErrLengthMismatch, len(b), h.Length)
	}

	switch h.Type {
	case TypeConfigure:
		return decodeConfigure(h, b)
	case TypeLaunch:
		return decodeLaunch(h, b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, h.Type)
	}
}

func decodeConfigure(h Header, b []byte) (*ConfigureMessage, error) {
	if len(b) < offConfigureEntries {
		return nil, fmt.Errorf("%w: configure message has no count field", ErrTruncatedMessage)
	}

	count := b[offConfigureCount]
	need := offConfigureEntries + int(count)*GameConfigurationSize
	if len(b) < need {
		return nil, fmt.Errorf("%w: count %d needs %d bytes, have %d", ErrTruncatedMessage, count, need, len(b))
	}

	configs := make([]GameConfiguration, count)
	for i := range configs {
		off := offConfigureEntries + i*GameConfigurationSize
		configs[i] = GameConfiguration{
			Name:    getString(b[off : off+NameCapacity]),
			Command: getString(b[off+NameCapacity : off+GameConfigurationSize]),
		}
	}

	return &ConfigureMessage{Header: h, Count: count, Configurations: configs}, nil
}

func decodeLaunch(h Header, b []byte) (*LaunchMessage, error) {
	if len(b) < LaunchMessageSize {
		return nil, fmt.Errorf("%w: launch message needs %d bytes, have %d", ErrTruncatedMessage, LaunchMessageSize, len(b))
	}
	return &LaunchMessage{
		Header: h,
		Name:   getString(b[offLaunchName : offLaunchName+NameCapacity]),
	}, nil
}
