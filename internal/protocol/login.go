package protocol

import (
	"fmt"
)

// LoginResponse carries the fields of the robot's reply to the login frame:
// three identity strings, a firmware version, and the initial dock state.
type LoginResponse struct {
	Name1    string
	Name2    string
	Name3    string
	Version  string
	Docked   bool
	Complete bool // false when the body was too short to parse
}

// MinLoginBody is the smallest login response body that carries usable
// fields. Shorter bodies are accepted but leave the dock state unknown.
const MinLoginBody = 8

// LoginBodyLen extracts the body length from a raw 5-byte login response
// header. The login exchange reuses only the fifth header byte as a
// single-byte length, unlike the two-byte length of general framing.
func LoginBodyLen(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("login response header too short: expected %d bytes, got %d", HeaderSize, len(header))
	}
	return int(header[4]), nil
}

// ParseLoginResponse parses a login response body.
// Layout: [flags][n1Len][n1...][n2Len][n2...][n3Len][n3...][verLen][ver...][dockByte].
// A body shorter than MinLoginBody is not an error; the result is simply
// marked incomplete so the session can proceed with dock state unknown.
func ParseLoginResponse(body []byte) (LoginResponse, error) {
	if len(body) < MinLoginBody {
		return LoginResponse{}, nil
	}

	pos := 1 // skip flags byte
	fields := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		if pos >= len(body) {
			return LoginResponse{}, fmt.Errorf("login response truncated at field %d: %d bytes", i+1, len(body))
		}
		n := int(body[pos])
		pos++
		if pos+n > len(body) {
			return LoginResponse{}, fmt.Errorf("login response field %d overruns body: need %d bytes at offset %d, have %d",
				i+1, n, pos, len(body))
		}
		fields = append(fields, string(body[pos:pos+n]))
		pos += n
	}

	if pos >= len(body) {
		return LoginResponse{}, fmt.Errorf("login response missing dock byte: %d bytes", len(body))
	}

	return LoginResponse{
		Name1:    fields[0],
		Name2:    fields[1],
		Name3:    fields[2],
		Version:  fields[3],
		Docked:   body[pos] == 0,
		Complete: true,
	}, nil
}
