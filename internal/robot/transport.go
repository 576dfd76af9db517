package robot

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Kaysham/spykee-remote/internal/protocol"
)

// Transport owns the TCP connection to the robot. Reads and writes use
// separate wire streams, so a command send may overlap an in-progress read;
// the write mutex only keeps concurrent command frames from interleaving.
type Transport struct {
	conn net.Conn
	wmu  sync.Mutex
}

// Dial opens a TCP connection to the robot.
func Dial(host string, port int, timeout time.Duration) (*Transport, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Transport{conn: conn}, nil
}

// NewTransport wraps an existing connection. Used by tests with net.Pipe.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// WriteFrame encodes and sends one command frame.
func (t *Transport) WriteFrame(command uint8, payload []byte) error {
	frame, err := protocol.EncodeFrame(command, payload)
	if err != nil {
		return err
	}
	return t.WriteRaw(frame)
}

// WriteRaw sends pre-encoded frame bytes in a single write.
func (t *Transport) WriteRaw(frame []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if _, err := t.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFull reads exactly len(buf) bytes. A short read is a connection
// failure, not a malformed frame.
func (t *Transport) ReadFull(buf []byte) error {
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return err
	}
	return nil
}

// Close closes the connection, unblocking any pending read.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the robot's address.
func (t *Transport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
