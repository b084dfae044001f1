// Package sensor reads the PM2.5 particulate sensor over its UART request/response
// protocol and hands readings to consumers through a latest-wins slot.
package sensor

import (
	"errors"
	"fmt"

	"purifier-go-home/internal/device"
)

// Command is the fixed request that asks the sensor for a measurement.
var Command = [5]byte{0x11, 0x02, 0x0b, 0x01, 0xe1}

// FrameLen is the minimum length of a measurement response.
const FrameLen = 20

var frameHeader = [3]byte{0x16, 0x11, 0x0b}

var (
	ErrShortFrame = errors.New("sensor: short frame")
	ErrBadHeader  = errors.New("sensor: bad frame header")
	ErrChecksum   = errors.New("sensor: checksum mismatch")
)

// Validate checks length, header and checksum of a response frame.
// The checksum holds when the first FrameLen bytes sum to zero modulo 256.
func Validate(frame []byte) error {
	if len(frame) < FrameLen {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if frame[0] != frameHeader[0] || frame[1] != frameHeader[1] || frame[2] != frameHeader[2] {
		return fmt.Errorf("%w: % x", ErrBadHeader, frame[:3])
	}
	var sum byte
	for _, b := range frame[:FrameLen] {
		sum += b
	}
	if sum != 0 {
		return fmt.Errorf("%w: sum=0x%02x", ErrChecksum, sum)
	}
	return nil
}

// Decode returns the PM2.5 concentration carried by a valid frame.
func Decode(frame []byte) (int, error) {
	if err := Validate(frame); err != nil {
		return 0, err
	}
	return int(frame[15])<<8 | int(frame[16]), nil
}

// Parse decodes a frame into a reading. Any validation failure yields a
// reading with QualityUnknown and zero concentration.
func Parse(frame []byte) device.Reading {
	pm25, err := Decode(frame)
	if err != nil {
		return device.Reading{Level: device.QualityUnknown}
	}
	return device.Reading{PM25: pm25, Level: LevelFor(pm25)}
}

// LevelFor maps a PM2.5 concentration (µg/m³) to a quality level.
func LevelFor(c int) device.QualityLevel {
	switch {
	case c < 35:
		return device.QualityGood
	case c < 75:
		return device.QualityFair
	case c < 115:
		return device.QualityModerate
	case c < 150:
		return device.QualityPoor
	case c <= 500:
		return device.QualityVeryPoor
	default:
		return device.QualityExtremelyPoor
	}
}

// EncodeFrame builds a valid response frame carrying pm25, used by the
// simulated transport.
func EncodeFrame(pm25 int) []byte {
	frame := make([]byte, FrameLen)
	copy(frame, frameHeader[:])
	frame[15] = byte(pm25 >> 8)
	frame[16] = byte(pm25)
	var sum byte
	for _, b := range frame[:FrameLen-1] {
		sum += b
	}
	frame[FrameLen-1] = -sum
	return frame
}
