// Package frame encodes metric updates into self-delimiting binary frames.
//
// A frame is a one-byte tag followed by a payload whose length is fixed by
// the tag. There is no length field: a receiver must know the payload length
// of every tag it accepts.
package frame

import (
	"fmt"
	"math"
)

// DataType is the tag of a frame
type DataType byte

const (
	Clock          DataType = 0x01
	Volume         DataType = 0x02
	CPULoad        DataType = 0x03
	MemoryUsage    DataType = 0x04
	GPUTemperature DataType = 0x05
	GPUFanSpeed    DataType = 0x06
)

// PercentMax is the largest value a percent payload carries
const PercentMax = 100

var registry = map[DataType]struct {
	name string
	size int
}{
	Clock:          {"clock", 2},
	Volume:         {"volume", 1},
	CPULoad:        {"cpu_load", 1},
	MemoryUsage:    {"memory_usage", 1},
	GPUTemperature: {"gpu_temperature", 1},
	GPUFanSpeed:    {"gpu_fan_speed", 1},
}

// PayloadLen returns the fixed payload length of t
func PayloadLen(t DataType) (int, bool) {
	entry, ok := registry[t]
	return entry.size, ok
}

func (t DataType) String() string {
	if entry, ok := registry[t]; ok {
		return entry.name
	}

	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Types returns every registered data type in tag order
func Types() []DataType {
	return []DataType{Clock, Volume, CPULoad, MemoryUsage, GPUTemperature, GPUFanSpeed}
}

// Frame is a tag followed by its payload
type Frame []byte

// Type returns the frame tag
func (f Frame) Type() DataType {
	if len(f) == 0 {
		return 0
	}

	return DataType(f[0])
}

// Payload returns the bytes after the tag
func (f Frame) Payload() []byte {
	if len(f) == 0 {
		return nil
	}

	return f[1:]
}

func (f Frame) String() string {
	return fmt.Sprintf("%s % x", f.Type(), []byte(f.Payload()))
}

// New builds a frame. It panics when the payload length does not match the
// tag, which is a programming error.
func New(t DataType, payload ...byte) Frame {
	size, ok := PayloadLen(t)
	if !ok || size != len(payload) {
		panic(fmt.Sprintf("frame: %s takes %d payload bytes, got %d", t, size, len(payload)))
	}

	f := make(Frame, 0, 1+size)
	f = append(f, byte(t))

	return append(f, payload...)
}

// EncodeClock encodes a wall-clock reading
func EncodeClock(hour, minute uint8) Frame {
	return New(Clock, hour, minute)
}

// EncodeVolume encodes a master volume scalar in [0.0, 1.0]
func EncodeVolume(level float32) Frame {
	return New(Volume, ScalarToPercent(level))
}

// EncodePercent encodes any percent-valued metric
func EncodePercent(t DataType, percent float64) Frame {
	return New(t, clampByte(percent, PercentMax))
}

// EncodeCelsius encodes a temperature in whole degrees
func EncodeCelsius(t DataType, degrees int) Frame {
	return New(t, clampByte(float64(degrees), math.MaxUint8))
}

// ScalarToPercent converts a fractional scale to a percent byte. The value
// is multiplied by 100 and truncated toward zero, then clamped to
// [0, PercentMax]. NaN maps to zero.
func ScalarToPercent(v float32) byte {
	return clampByte(float64(v*100), PercentMax)
}

func clampByte(v float64, upper int) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(upper):
		return byte(upper)
	default:
		return byte(v)
	}
}
