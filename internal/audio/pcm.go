package audio

import "fmt"

// SampleRate is the fixed rate of the robot's audio stream in Hz.
const SampleRate = 16000

// ConvertPCM16To8 converts little-endian signed 16-bit PCM to unsigned
// 8-bit offset-binary samples: b = (s + 32768) >> 8 on the signed sample,
// mapping -32768..32767 onto 0..255. Input length must be even.
func ConvertPCM16To8(pcm16 []byte) ([]byte, error) {
	if len(pcm16)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even, got %d bytes", len(pcm16))
	}

	samples := make([]byte, len(pcm16)/2)
	for i, j := 0, 0; i < len(pcm16); i, j = i+2, j+1 {
		s := int16(pcm16[i]) | int16(pcm16[i+1])<<8
		samples[j] = byte((int(s) + 0x8000) >> 8)
	}
	return samples, nil
}
