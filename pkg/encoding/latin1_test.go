package encoding

import (
	"testing"
	"unicode/utf8"
)

func TestLatin1ToUTF8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"ascii tag", []byte("VOX "), "VOX "},
		{"empty", []byte{}, ""},
		{"high bytes", []byte{0x63, 0x61, 0x66, 0xE9}, "caf\u00e9"},
		{"nbsp and y-umlaut", []byte{0xA0, 0xFF}, "\u00a0\u00ff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Latin1ToUTF8(tt.data)
			if got != tt.want {
				t.Errorf("Latin1ToUTF8(%v) = %q, want %q", tt.data, got, tt.want)
			}
			if n := utf8.RuneCountInString(got); n != len(tt.data) {
				t.Errorf("expected %d runes, got %d", len(tt.data), n)
			}
		})
	}
}

func TestLatin1ToUTF8_AllBytes(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	got := []rune(Latin1ToUTF8(data))
	if len(got) != len(data) {
		t.Fatalf("expected %d runes, got %d", len(data), len(got))
	}
	for i, r := range got {
		if r != rune(i) {
			t.Errorf("byte 0x%02x decoded as %U", i, r)
		}
	}
}
