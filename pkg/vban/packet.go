// ABOUTME: VBAN packet encoder and decoder
// ABOUTME: Explicit field-at-offset serialization with length checks before every read
package vban

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed VBAN header length
	HeaderSize = 28

	// MaxPayloadSize is the largest payload a VBAN packet may carry
	MaxPayloadSize = 1436

	// MaxPacketSize is header plus the largest payload
	MaxPacketSize = HeaderSize + MaxPayloadSize

	// MaxFrames is the largest sample count (per channel) in one packet
	MaxFrames = 256

	// MaxChannels is the largest channel count in one packet
	MaxChannels = 256

	// StreamNameSize is the fixed width of the stream name field
	StreamNameSize = 16

	// DefaultPort is the standard VBAN UDP port
	DefaultPort = 6980

	// DefaultSampleRate is the rate used when none is configured
	DefaultSampleRate = 48000

	bytesPerSample = 2
)

// Header field masks and values.
const (
	SubProtocolAudio   byte = 0x00
	SubProtocolSerial  byte = 0x20
	SubProtocolText    byte = 0x40
	SubProtocolService byte = 0x60

	DataTypeUint8   byte = 0x00
	DataTypeInt16   byte = 0x01
	DataTypeInt24   byte = 0x02
	DataTypeInt32   byte = 0x03
	DataTypeFloat32 byte = 0x04
	DataTypeFloat64 byte = 0x05
	DataTypeInt12   byte = 0x06
	DataTypeInt10   byte = 0x07

	CodecPCM byte = 0x00

	sampleRateMask  byte = 0x1F
	subProtocolMask byte = 0xE0
	dataTypeMask    byte = 0x07
	codecMask       byte = 0xF0
)

// Magic is the 4-byte fourcc at the start of every packet
var Magic = [4]byte{'V', 'B', 'A', 'N'}

var (
	// ErrInvalidPacket is returned for anything that must be dropped on receive
	ErrInvalidPacket = errors.New("vban: invalid packet")

	// ErrUnsupportedFormat marks well-formed packets that are not INT16 PCM audio
	ErrUnsupportedFormat = errors.New("vban: unsupported format")

	// ErrTooLarge is returned when a payload would exceed MaxPayloadSize or MaxFrames
	ErrTooLarge = errors.New("vban: payload too large")

	// ErrInvalidLayout is returned when samples cannot be split into whole frames
	ErrInvalidLayout = errors.New("vban: invalid sample layout")

	// ErrUnsupportedRate is returned for rates missing from the protocol table
	ErrUnsupportedRate = errors.New("vban: unsupported sample rate")
)

// Header is a decoded VBAN header
type Header struct {
	SampleRateIndex byte
	SubProtocol     byte
	Frames          int // samples per channel, 1..256
	Channels        int // 1..256
	DataType        byte
	Codec           byte
	StreamName      [StreamNameSize]byte
	FrameCounter    uint32
}

// Name returns the stream name up to the first NUL byte
func (h Header) Name() string {
	return streamNameString(h.StreamName)
}

// SampleRate returns the header rate in Hz, false if the index is outside the table
func (h Header) SampleRate() (int, bool) {
	return SampleRate(h.SampleRateIndex)
}

// PayloadSize is the payload length declared by the header
func (h Header) PayloadSize() int {
	return h.Frames * h.Channels * bytesPerSample
}

// NewStreamName copies s into a 16-byte stream name, truncating or zero padding
func NewStreamName(s string) [StreamNameSize]byte {
	var name [StreamNameSize]byte
	copy(name[:], s)
	return name
}

func streamNameString(name [StreamNameSize]byte) string {
	for i, b := range name {
		if b == 0 {
			return string(name[:i])
		}
	}
	return string(name[:])
}

// MaxFramesPerPacket returns how many frames of int16 audio fit in one packet
func MaxFramesPerPacket(channels int) int {
	if channels < 1 {
		return 0
	}
	frames := MaxPayloadSize / (channels * bytesPerSample)
	if frames > MaxFrames {
		frames = MaxFrames
	}
	return frames
}

// Encode appends one INT16 PCM packet to dst and returns the extended slice.
// frame is written as-is; advancing the counter is the caller's job.
func Encode(dst []byte, name [StreamNameSize]byte, sampleRate int, frame uint32, samples []int16, channels int) ([]byte, error) {
	if channels < 1 || channels > MaxChannels {
		return dst, fmt.Errorf("%w: %d channels", ErrInvalidLayout, channels)
	}
	if len(samples) == 0 || len(samples)%channels != 0 {
		return dst, fmt.Errorf("%w: %d samples for %d channels", ErrInvalidLayout, len(samples), channels)
	}

	frames := len(samples) / channels
	payload := len(samples) * bytesPerSample
	if payload > MaxPayloadSize || frames > MaxFrames {
		return dst, fmt.Errorf("%w: %d frames x %d channels", ErrTooLarge, frames, channels)
	}

	srIndex, ok := SampleRateIndex(sampleRate)
	if !ok {
		return dst, fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, sampleRate)
	}

	start := len(dst)
	dst = grow(dst, HeaderSize+payload)
	pkt := dst[start:]

	copy(pkt[0:4], Magic[:])
	pkt[4] = srIndex | SubProtocolAudio
	pkt[5] = byte(frames - 1)
	pkt[6] = byte(channels - 1)
	pkt[7] = DataTypeInt16 | CodecPCM
	copy(pkt[8:24], name[:])
	binary.LittleEndian.PutUint32(pkt[24:28], frame)

	body := pkt[HeaderSize:]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(body[i*bytesPerSample:], uint16(s))
	}

	return dst, nil
}

// ParseHeader validates a datagram and returns its header.
// The payload length must match the header exactly.
func ParseHeader(data []byte) (Header, error) {
	var h Header

	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than header", ErrInvalidPacket, len(data))
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return h, fmt.Errorf("%w: bad magic %q", ErrInvalidPacket, data[0:4])
	}

	h.SampleRateIndex = data[4] & sampleRateMask
	h.SubProtocol = data[4] & subProtocolMask
	h.Frames = int(data[5]) + 1
	h.Channels = int(data[6]) + 1
	h.DataType = data[7] & dataTypeMask
	h.Codec = data[7] & codecMask
	copy(h.StreamName[:], data[8:24])
	h.FrameCounter = binary.LittleEndian.Uint32(data[24:28])

	if h.SubProtocol != SubProtocolAudio {
		return h, fmt.Errorf("%w: %w: sub-protocol 0x%02x", ErrInvalidPacket, ErrUnsupportedFormat, h.SubProtocol)
	}
	if h.DataType != DataTypeInt16 || h.Codec != CodecPCM {
		return h, fmt.Errorf("%w: %w: format_bit 0x%02x", ErrInvalidPacket, ErrUnsupportedFormat, data[7])
	}

	declared := h.PayloadSize()
	actual := len(data) - HeaderSize
	if declared > MaxPayloadSize {
		return h, fmt.Errorf("%w: declared payload %d exceeds %d", ErrInvalidPacket, declared, MaxPayloadSize)
	}
	if declared != actual {
		return h, fmt.Errorf("%w: declared payload %d, got %d", ErrInvalidPacket, declared, actual)
	}

	return h, nil
}

// Decode parses a datagram into its header and a freshly allocated sample slice
func Decode(data []byte) (Header, []int16, error) {
	return DecodeTo(nil, data)
}

// DecodeTo parses a datagram, writing samples into dst[:0] (grown if needed)
func DecodeTo(dst []int16, data []byte) (Header, []int16, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return h, dst[:0], err
	}

	n := h.Frames * h.Channels
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]

	body := data[HeaderSize:]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(body[i*bytesPerSample:]))
	}

	return h, dst, nil
}

func grow(b []byte, n int) []byte {
	if cap(b)-len(b) < n {
		nb := make([]byte, len(b), len(b)+n)
		copy(nb, b)
		b = nb
	}
	return b[:len(b)+n]
}
