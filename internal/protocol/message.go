// Package protocol defines the binary wire format spoken between the game
// selection UI and the launch daemon over a local stream socket.
//
// Every message starts with a fixed 16-byte header:
//
//	offset 0   magic   uint32  always MessageMagic
//	offset 4   type    uint32  MessageType discriminator
//	offset 8   length  uint64  total message bytes, header included
//
// All integers use the native byte order of the build. Both ends of the
// socket run on the same host, so no endianness conversion is performed.
//
// String fields are fixed-capacity byte arrays padded with NUL bytes. On
// decode a string ends at the first NUL or at the field capacity, whichever
// comes first.
package protocol

import (
	"errors"
	"fmt"
)

// MessageMagic is the sentinel every header must carry.
const MessageMagic uint32 = 0x0BEED00B

// DefaultSocketPath is the well-known socket the daemon listens on and the
// UI connects to.
const DefaultSocketPath = "/tmp/5D9d"

// MessageType discriminates the payload that follows the header.
type MessageType uint32

const (
	// TypeInvalid is the zero value and is never accepted on the wire.
	TypeInvalid MessageType = iota
	// TypeConfigure carries the list of launchable games.
	TypeConfigure
	// TypeLaunch asks the daemon to start one configured game.
	TypeLaunch
)

// String returns a log-friendly name for the message type.
func (t MessageType) String() string {
	switch t {
	case TypeConfigure:
		return "configure"
	case TypeLaunch:
		return "launch"
	case TypeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Valid reports whether t is a type the daemon knows how to decode.
func (t MessageType) Valid() bool {
	return t == TypeConfigure || t == TypeLaunch
}

// Field capacities and fixed sizes of the wire layout.
const (
	// HeaderSize is the encoded size of Header.
	HeaderSize = 16

	// NameCapacity is the byte capacity of a game name field.
	NameCapacity = 256

	// CommandCapacity is the byte capacity of a game command field.
	CommandCapacity = 1024

	// GameConfigurationSize is the encoded size of one configuration record.
	GameConfigurationSize = NameCapacity + CommandCapacity

	// MaxConfigurations is the largest entry count a Configure message may carry.
	// The count travels as a single byte.
	MaxConfigurations = 255

	// LaunchMessageSize is the encoded size of a LaunchMessage.
	LaunchMessageSize = HeaderSize + NameCapacity

	// MaxMessageSize bounds the length a peer may declare in a header.
	// It is the size of a Configure message at full capacity.
	MaxMessageSize = HeaderSize + configureCountSize + MaxConfigurations*GameConfigurationSize

	configureCountSize = 1
)

// Errors returned while building, validating or decoding messages.
var (
	// ErrShortHeader is returned when fewer than HeaderSize bytes are supplied.
	ErrShortHeader = errors.New("header shorter than 16 bytes")

	// ErrBadMagic is returned when the header magic does not match MessageMagic.
	ErrBadMagic = errors.New("bad magic")

	// ErrUnknownType is returned for discriminators other than Configure and Launch.
	ErrUnknownType = errors.New("unknown message type")

	// ErrLengthTooShort is returned when the declared length is below HeaderSize.
	ErrLengthTooShort = errors.New("declared length shorter than header")

	// ErrOversizedMessage is returned when the declared length exceeds MaxMessageSize.
	ErrOversizedMessage = errors.New("declared length exceeds maximum message size")

	// ErrCapacityExceeded is returned when more than MaxConfigurations entries are supplied.
	ErrCapacityExceeded = errors.New("too many game configurations")

	// ErrTruncatedMessage is returned when a body is too short for its type.
	ErrTruncatedMessage = errors.New("message body truncated")

	// ErrLengthMismatch is returned when a buffer does not match the header length.
	ErrLengthMismatch = errors.New("buffer length does not match header")
)

// Header is the fixed prefix of every message.
type Header struct {
	Magic  uint32
	Type   MessageType
	Length uint64
}

// NewHeader returns a header with the magic set.
func NewHeader(t MessageType, length uint64) Header {
	return Header{Magic: MessageMagic, Type: t, Length: length}
}

// GameConfiguration maps a logical game name to the shell command that
// starts it.
type GameConfiguration struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// Message is one decoded protocol message. The set of implementations is
// closed: *ConfigureMessage and *LaunchMessage.
type Message interface {
	// MessageHeader returns the header the message was built or decoded with.
	MessageHeader() Header
	isMessage()
}

// ConfigureMessage publishes the launchable games to the daemon.
type ConfigureMessage struct {
	Header Header
	// Count is the number of semantically valid entries. Entries beyond it
	// are ignored even when physically present.
	Count          uint8
	Configurations []GameConfiguration
}

// MessageHeader implements Message.
func (m *ConfigureMessage) MessageHeader() Header { return m.Header }

func (*ConfigureMessage) isMessage() {}

// Valid returns the entries covered by Count.
func (m *ConfigureMessage) Valid() []GameConfiguration {
	n := int(m.Count)
	if n > len(m.Configurations) {
		n = len(m.Configurations)
	}
	if n > MaxConfigurations {
		n = MaxConfigurations
	}
	return m.Configurations[:n]
}

// LaunchMessage asks the daemon to start the game configured under Name.
type LaunchMessage struct {
	Header Header
	Name   string
}

// MessageHeader implements Message.
func (m *LaunchMessage) MessageHeader() Header { return m.Header }

func (*LaunchMessage) isMessage() {}
