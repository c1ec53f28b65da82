// Package audio is the streaming audio pipeline of a voice session:
// capture frames are re-encoded to PCM16 for the remote channel, and
// inbound chunks are decoded and scheduled back to back for playback.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Sample rates of the realtime channel.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
)

// ErrOddLength is returned for PCM16 payloads with a dangling byte.
var ErrOddLength = errors.New("pcm16 payload has odd length")

// MIMEType is the transport type of raw PCM16 at rate.
func MIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// Blob is an encoded chunk ready to send.
type Blob struct {
	Data     []byte
	MIMEType string
}

// NewBlob encodes captured samples for the channel.
func NewBlob(samples []float32, rate int) Blob {
	return Blob{Data: EncodePCM16(samples), MIMEType: MIMEType(rate)}
}

// EncodePCM16 converts samples in [-1, 1] to little-endian int16. Values
// outside the range are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		var v int16
		switch {
		case s >= 1:
			v = math.MaxInt16
		case s <= -1:
			v = math.MinInt16
		case s < 0:
			v = int16(s * 32768)
		default:
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts little-endian int16 to samples in [-1, 1).
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// DecodeFloat32 reads little-endian IEEE-754 samples as sent by browser
// capture nodes.
func DecodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 payload length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeFloat32 is the inverse of DecodeFloat32.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// Duration is the playback length of n mono samples at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
