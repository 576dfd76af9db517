package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader represents the 44-byte header of a WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // data size + 36
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // number of bytes in the data
}

// WAVHeaderSize is the size of the header in bytes.
const WAVHeaderSize = 44

// EncodeClip wraps 8-bit unsigned mono samples at 16 kHz in a WAV container.
// Only the overall chunk size and the data size vary per clip; every other
// header field is fixed by the robot's stream format.
func EncodeClip(samples []byte) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio clip")
	}

	dataSize := uint32(len(samples))
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate,
		BlockAlign:    1,
		BitsPerSample: 8,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(samples)

	return buf.Bytes(), nil
}

// ClipDuration returns the playback duration in seconds of an encoded clip.
func ClipDuration(clip []byte) (float64, error) {
	if len(clip) < WAVHeaderSize {
		return 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(clip))
	}

	dataSize := binary.LittleEndian.Uint32(clip[40:44])
	return float64(dataSize) / float64(SampleRate), nil
}
