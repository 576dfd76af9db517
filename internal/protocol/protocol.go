package protocol

import (
	"errors"
	"fmt"
)

// Protocol constants
const (
	// Magic prefix carried by every frame
	Magic0 = 'P'
	Magic1 = 'K'

	// Frame structure sizes
	HeaderSize = 5     // 2 magic + 1 command + 2 length bytes
	MaxPayload = 65535 // length field is a big-endian uint16

	// Outgoing command ids
	CmdLogin       = 0x0a
	CmdMove        = 0x05
	CmdSoundEffect = 0x07
	CmdSetVolume   = 0x09
	CmdStream      = 0x0f
	CmdDockControl = 0x10

	// Incoming command ids
	CmdAudio        = 1
	CmdVideoFrame   = 2
	CmdBatteryLevel = 3
	CmdDockStatus   = 16

	// Dock control codes (CmdDockControl payload)
	DockControlUndock = 5
	DockControlDock   = 6
	DockControlCancel = 7

	// Dock status values (CmdDockStatus payload)
	DockStatusUndocked = 1
	DockStatusDocked   = 2

	// Stream ids (CmdStream payload)
	StreamVideo = 1
	StreamAudio = 2
)

// ErrBadMagic is returned when a header does not start with 'P','K'.
// The stream is desynchronized and the caller must resynchronize or abort.
var ErrBadMagic = errors.New("frame header missing magic prefix")

// Header represents a decoded 5-byte frame header.
// Layout: ['P']['K'][Command:1][PayloadLen:2 big-endian]
type Header struct {
	Command    uint8
	PayloadLen uint16
}

// IsMagic reports whether the two bytes are the frame magic prefix.
func IsMagic(b0, b1 byte) bool {
	return b0 == Magic0 && b1 == Magic1
}

// EncodeFrame builds a complete wire frame for the given command and payload.
func EncodeFrame(command uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("payload too large: %d bytes (maximum %d)", len(payload), MaxPayload)
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = Magic0
	frame[1] = Magic1
	frame[2] = command
	frame[3] = byte(len(payload) >> 8)
	frame[4] = byte(len(payload))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// DecodeHeader parses a 5-byte frame header. The caller is responsible for
// reading exactly PayloadLen further bytes from the stream.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	if !IsMagic(data[0], data[1]) {
		return Header{}, ErrBadMagic
	}

	return Header{
		Command:    data[2],
		PayloadLen: uint16(data[3])<<8 | uint16(data[4]),
	}, nil
}

// EncodeLogin builds the login frame. The payload nests a second length:
// [userLen+passLen+2][userLen][user...][passLen][pass...], where the outer
// frame length equals that leading byte. The peer rejects any other shape.
func EncodeLogin(user, pass string) ([]byte, error) {
	if len(user) > 255 || len(pass) > 255 {
		return nil, fmt.Errorf("login credentials too long: user %d, pass %d bytes", len(user), len(pass))
	}

	payload := make([]byte, 0, 2+len(user)+len(pass))
	payload = append(payload, byte(len(user)))
	payload = append(payload, user...)
	payload = append(payload, byte(len(pass)))
	payload = append(payload, pass...)

	return EncodeFrame(CmdLogin, payload)
}

// EncodeMove builds a move frame from raw left and right track speed bytes.
// Forward speeds are 1-100; reverse speeds are encoded as 255-speed.
func EncodeMove(left, right uint8) ([]byte, error) {
	return EncodeFrame(CmdMove, []byte{left, right})
}

// EncodeDockControl builds a dock control frame for one of the DockControl codes.
func EncodeDockControl(code uint8) ([]byte, error) {
	return EncodeFrame(CmdDockControl, []byte{code})
}

// EncodeStream builds a stream control frame enabling or disabling the
// video (StreamVideo) or audio (StreamAudio) feed.
func EncodeStream(streamID uint8, enabled bool) ([]byte, error) {
	enable := byte(0)
	if enabled {
		enable = 1
	}
	return EncodeFrame(CmdStream, []byte{streamID, enable})
}

// EncodeSetVolume builds a volume frame. Volume is clamped to [0, 100].
func EncodeSetVolume(volume int) ([]byte, error) {
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	return EncodeFrame(CmdSetVolume, []byte{byte(volume)})
}

// EncodeSoundEffect builds a sound effect frame for effect ids 0-7.
func EncodeSoundEffect(effect uint8) ([]byte, error) {
	if effect > 7 {
		return nil, fmt.Errorf("invalid sound effect id: %d (valid range 0-7)", effect)
	}
	return EncodeFrame(CmdSoundEffect, []byte{effect})
}
