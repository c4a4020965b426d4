// codec_test.go tests header validation, message construction and decoding.
package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		typ    MessageType
		length uint64
	}{
		{"configure minimal", TypeConfigure, HeaderSize},
		{"configure with entries", TypeConfigure, HeaderSize + 1 + 3*GameConfigurationSize},
		{"launch", TypeLaunch, LaunchMessageSize},
		{"large length", TypeLaunch, 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ValidateHeader(NewHeader(tt.typ, tt.length).Encode())
			if err != nil {
				t.Fatalf("ValidateHeader failed: %v", err)
			}
			if h.Type != tt.typ {
				t.Errorf("Type: got %s, want %s", h.Type, tt.typ)
			}
			if h.Length != tt.length {
				t.Errorf("Length: got %d, want %d", h.Length, tt.length)
			}
			if h.Magic != MessageMagic {
				t.Errorf("Magic: got 0x%08X", h.Magic)
			}
		})
	}
}

func TestValidateHeader_MagicBitFlips(t *testing.T) {
	valid := NewHeader(TypeLaunch, LaunchMessageSize).Encode()

	for bit := 0; bit < 32; bit++ {
		b := append([]byte(nil), valid...)
		b[offMagic+bit/8] ^= 1 << (bit % 8)

		_, err := ValidateHeader(b)
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("bit %d: expected ErrBadMagic, got %v", bit, err)
		}
	}
}

func TestValidateHeader_Rejections(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		_, err := ValidateHeader(make([]byte, HeaderSize-1))
		if !errors.Is(err, ErrShortHeader) {
			t.Errorf("expected ErrShortHeader, got %v", err)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := ValidateHeader(NewHeader(TypeInvalid, HeaderSize).Encode())
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("expected ErrUnknownType, got %v", err)
		}
	})

	t.Run("type past known range", func(t *testing.T) {
		_, err := ValidateHeader(NewHeader(MessageType(3), HeaderSize).Encode())
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("expected ErrUnknownType, got %v", err)
		}
	})

	t.Run("length below header size", func(t *testing.T) {
		_, err := ValidateHeader(NewHeader(TypeConfigure, HeaderSize-1).Encode())
		if !errors.Is(err, ErrLengthTooShort) {
			t.Errorf("expected ErrLengthTooShort, got %v", err)
		}
	})

	t.Run("magic checked before type", func(t *testing.T) {
		h := Header{Magic: 0, Type: TypeInvalid, Length: 0}
		_, err := ValidateHeader(h.Encode())
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("expected ErrBadMagic, got %v", err)
		}
	})
}

func TestCheckLength(t *testing.T) {
	if err := CheckLength(NewHeader(TypeConfigure, MaxMessageSize)); err != nil {
		t.Errorf("length at maximum rejected: %v", err)
	}
	err := CheckLength(NewHeader(TypeConfigure, MaxMessageSize+1))
	if !errors.Is(err, ErrOversizedMessage) {
		t.Errorf("expected ErrOversizedMessage, got %v", err)
	}
}

func TestBuildConfigureMessage_Capacity(t *testing.T) {
	entries := make([]GameConfiguration, MaxConfigurations+1)
	for i := range entries {
		entries[i] = GameConfiguration{Name: "game", Command: "./game"}
	}

	t.Run("exactly maximum succeeds", func(t *testing.T) {
		msg, err := BuildConfigureMessage(entries[:MaxConfigurations])
		if err != nil {
			t.Fatalf("BuildConfigureMessage failed: %v", err)
		}
		if msg.Count != MaxConfigurations {
			t.Errorf("Count: got %d, want %d", msg.Count, MaxConfigurations)
		}
		if msg.Header.Length != MaxMessageSize {
			t.Errorf("Length: got %d, want %d", msg.Header.Length, MaxMessageSize)
		}
	})

	t.Run("one over maximum fails", func(t *testing.T) {
		_, err := BuildConfigureMessage(entries)
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("expected ErrCapacityExceeded, got %v", err)
		}
	})
}

func TestBuildConfigureMessage_Length(t *testing.T) {
	msg, err := BuildConfigureMessage([]GameConfiguration{
		{Name: "pong", Command: "./pong --fullscreen"},
		{Name: "maze", Command: "./maze"},
	})
	if err != nil {
		t.Fatalf("BuildConfigureMessage failed: %v", err)
	}

	want := uint64(HeaderSize + 1 + 2*GameConfigurationSize)
	if msg.Header.Length != want {
		t.Errorf("Length: got %d, want %d", msg.Header.Length, want)
	}
	if got := len(Encode(msg)); uint64(got) != want {
		t.Errorf("encoded size: got %d, want %d", got, want)
	}
}

func TestConfigureMessage_EncodeDecode(t *testing.T) {
	msg, err := BuildConfigureMessage([]GameConfiguration{
		{Name: "pong", Command: "./pong --fullscreen"},
		{Name: "maze", Command: "./maze"},
	})
	if err != nil {
		t.Fatalf("BuildConfigureMessage failed: %v", err)
	}

	b := Encode(msg)
	h, err := ValidateHeader(b)
	if err != nil {
		t.Fatalf("ValidateHeader failed: %v", err)
	}
	decoded, err := Decode(h, b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	cfg, ok := decoded.(*ConfigureMessage)
	if !ok {
		t.Fatalf("expected *ConfigureMessage, got %T", decoded)
	}
	if cfg.Count != 2 {
		t.Fatalf("Count: got %d, want 2", cfg.Count)
	}
	if cfg.Configurations[0] != msg.Configurations[0] || cfg.Configurations[1] != msg.Configurations[1] {
		t.Errorf("entries mismatch: got %+v", cfg.Configurations)
	}
}

func TestLaunchMessage_EncodeDecode(t *testing.T) {
	msg := BuildLaunchMessage("maze")
	if msg.Header.Length != LaunchMessageSize {
		t.Errorf("Length: got %d, want %d", msg.Header.Length, LaunchMessageSize)
	}

	b := Encode(msg)
	h, err := ValidateHeader(b)
	if err != nil {
		t.Fatalf("ValidateHeader failed: %v", err)
	}
	decoded, err := Decode(h, b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	launch, ok := decoded.(*LaunchMessage)
	if !ok {
		t.Fatalf("expected *LaunchMessage, got %T", decoded)
	}
	if launch.Name != "maze" {
		t.Errorf("Name: got %q, want %q", launch.Name, "maze")
	}
}

func TestStringTruncation(t *testing.T) {
	t.Run("long launch name", func(t *testing.T) {
		msg := BuildLaunchMessage(strings.Repeat("n", NameCapacity*2))
		if len(msg.Name) != NameCapacity-1 {
			t.Errorf("name length: got %d, want %d", len(msg.Name), NameCapacity-1)
		}

		b := Encode(msg)
		if len(b) != LaunchMessageSize {
			t.Fatalf("encoded size: got %d, want %d", len(b), LaunchMessageSize)
		}
		if b[LaunchMessageSize-1] != 0 {
			t.Error("expected trailing NUL in name field")
		}
	})

	t.Run("long command", func(t *testing.T) {
		msg, err := BuildConfigureMessage([]GameConfiguration{
			{Name: "long", Command: strings.Repeat("c", CommandCapacity+10)},
		})
		if err != nil {
			t.Fatalf("BuildConfigureMessage failed: %v", err)
		}
		if len(msg.Configurations[0].Command) != CommandCapacity-1 {
			t.Errorf("command length: got %d", len(msg.Configurations[0].Command))
		}
	})

	t.Run("embedded NUL ends the string", func(t *testing.T) {
		msg := BuildLaunchMessage("maze\x00trailer")
		if msg.Name != "maze" {
			t.Errorf("Name: got %q, want %q", msg.Name, "maze")
		}
	})

	t.Run("field without NUL stops at capacity", func(t *testing.T) {
		field := []byte(strings.Repeat("x", NameCapacity))
		if got := getString(field); len(got) != NameCapacity {
			t.Errorf("getString length: got %d, want %d", len(got), NameCapacity)
		}
	})
}

func TestDecode_Structural(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		b := Encode(BuildLaunchMessage("maze"))
		h, _ := ValidateHeader(b)
		_, err := Decode(h, b[:len(b)-1])
		if !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})

	t.Run("launch shorter than name field", func(t *testing.T) {
		h := NewHeader(TypeLaunch, HeaderSize+10)
		b := make([]byte, h.Length)
		h.put(b)
		_, err := Decode(h, b)
		if !errors.Is(err, ErrTruncatedMessage) {
			t.Errorf("expected ErrTruncatedMessage, got %v", err)
		}
	})

	t.Run("configure without count", func(t *testing.T) {
		h := NewHeader(TypeConfigure, HeaderSize)
		_, err := Decode(h, h.Encode())
		if !errors.Is(err, ErrTruncatedMessage) {
			t.Errorf("expected ErrTruncatedMessage, got %v", err)
		}
	})

	t.Run("configure count larger than body", func(t *testing.T) {
		h := NewHeader(TypeConfigure, HeaderSize+1+GameConfigurationSize)
		b := make([]byte, h.Length)
		h.put(b)
		b[offConfigureCount] = 2
		_, err := Decode(h, b)
		if !errors.Is(err, ErrTruncatedMessage) {
			t.Errorf("expected ErrTruncatedMessage, got %v", err)
		}
	})

	t.Run("records beyond count are ignored", func(t *testing.T) {
		h := NewHeader(TypeConfigure, HeaderSize+1+2*GameConfigurationSize)
		b := make([]byte, h.Length)
		h.put(b)
		b[offConfigureCount] = 1
		copy(b[offConfigureEntries:], "first")
		copy(b[offConfigureEntries+GameConfigurationSize:], "second")

		msg, err := Decode(h, b)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		cfg := msg.(*ConfigureMessage)
		if len(cfg.Valid()) != 1 || cfg.Valid()[0].Name != "first" {
			t.Errorf("expected only the first entry, got %+v", cfg.Valid())
		}
	})
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want string
	}{
		{TypeInvalid, "invalid"},
		{TypeConfigure, "configure"},
		{TypeLaunch, "launch"},
		{MessageType(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", uint32(tt.typ), got, tt.want)
		}
	}
}
