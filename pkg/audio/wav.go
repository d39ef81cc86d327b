// Package audio encodes synthesized speech as uncompressed WAV.
package audio

import (
	"encoding/binary"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

const (
	bitsPerSample = 16
	channels      = 1
	headerSize    = 44
)

// DecodePCM16LE converts little-endian signed 16-bit PCM bytes to samples.
// A trailing odd byte is dropped.
func DecodePCM16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// WriteWAV writes mono 16-bit PCM samples with a canonical RIFF/WAVE header
func WriteWAV(w io.Writer, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return goerr.New("sample rate must be positive", goerr.V("sample_rate", sampleRate))
	}

	dataLen := len(samples) * bitsPerSample / 8
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, headerSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := w.Write(header); err != nil {
		return goerr.Wrap(err, "failed to write WAV header")
	}

	body := make([]byte, dataLen)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(body[i*2:], uint16(s))
	}
	if _, err := w.Write(body); err != nil {
		return goerr.Wrap(err, "failed to write WAV samples")
	}

	return nil
}
