package sensor

import (
	"errors"
	"testing"

	"purifier-go-home/internal/device"
)

func TestDecodeValidFrame(t *testing.T) {
	frame := EncodeFrame(40)
	pm25, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pm25 != 40 {
		t.Errorf("pm25 = %d, want 40", pm25)
	}
	r := Parse(frame)
	if r.Level != device.QualityFair {
		t.Errorf("level = %v, want fair", r.Level)
	}
}

func TestDecodeHandBuiltFrame(t *testing.T) {
	frame := []byte{
		0x16, 0x11, 0x0b, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x2c, 0x00, 0x00, 0x00,
	}
	var sum byte
	for _, b := range frame[:19] {
		sum += b
	}
	frame[19] = -sum

	pm25, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pm25 != 300 {
		t.Errorf("pm25 = %d, want 300", pm25)
	}
}

func TestDecodeErrors(t *testing.T) {
	corrupt := EncodeFrame(40)
	corrupt[8] ^= 0x01

	badHeader := EncodeFrame(40)
	badHeader[2] = 0x0c

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrShortFrame},
		{"truncated", EncodeFrame(40)[:19], ErrShortFrame},
		{"bad header", badHeader, ErrBadHeader},
		{"corrupt byte", corrupt, ErrChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			r := Parse(tt.frame)
			if r.Level != device.QualityUnknown || r.PM25 != 0 {
				t.Errorf("Parse = %+v, want unknown", r)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	frame := append(EncodeFrame(12), 0xde, 0xad, 0xbe, 0xef)
	pm25, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pm25 != 12 {
		t.Errorf("pm25 = %d, want 12", pm25)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		c    int
		want device.QualityLevel
	}{
		{0, device.QualityGood},
		{34, device.QualityGood},
		{35, device.QualityFair},
		{74, device.QualityFair},
		{75, device.QualityModerate},
		{114, device.QualityModerate},
		{115, device.QualityPoor},
		{149, device.QualityPoor},
		{150, device.QualityVeryPoor},
		{500, device.QualityVeryPoor},
		{501, device.QualityExtremelyPoor},
		{65535, device.QualityExtremelyPoor},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.c); got != tt.want {
			t.Errorf("LevelFor(%d) = %v, want %v", tt.c, got, tt.want)
		}
	}
}
