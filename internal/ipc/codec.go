package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// ProtocolError marks a framing violation (header read failure, short
// header, payload over MaxPayload, short payload read, or unparsable
// ancillary data). An fd that arrives with any message kind is passed
// through in Message.FD. Any ProtocolError closes the session —
// callers should not attempt to resync the stream.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("ipc: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// Conn wraps a Unix domain socket connection with the header+payload
// framing and SCM_RIGHTS fd passing. It keeps a sticky first-error
// field so a chain of send/recv calls can be written without checking
// err after every step, backed by a raw *net.UnixConn instead of pipes
// because HELLO_ACK needs ancillary-fd support that io.Writer/io.Reader
// can't carry.
type Conn struct {
	c   *net.UnixConn
	err error
}

// NewConn wraps an already-connected or already-accepted Unix socket.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{c: c}
}

// Err returns the first error encountered by this Conn, if any.
func (c *Conn) Err() error { return c.err }

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.c.Close() }

// Send writes hdr followed by payload (payload may be nil). hdr.C is
// overwritten with len(payload).
func (c *Conn) Send(hdr Header, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	hdr.C = uint32(len(payload))
	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hdr.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Seq)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(hdr.A))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(hdr.B))
	binary.LittleEndian.PutUint32(buf[16:20], hdr.C)
	buf = append(buf, payload...)
	_, c.err = c.c.Write(buf)
	return c.err
}

// SendWithFD writes hdr (ignoring any payload) along with one
// ancillary file descriptor, used for HELLO_ACK's shared-memory
// framebuffer handoff.
func (c *Conn) SendWithFD(hdr Header, fd int) error {
	if c.err != nil {
		return c.err
	}
	hdr.C = 0
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hdr.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Seq)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(hdr.A))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(hdr.B))
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	oob := unix.UnixRights(fd)
	_, _, c.err = c.c.WriteMsgUnix(buf, oob, nil)
	return c.err
}

// Recv reads one full message: header, then payload bytes if any,
// then an ancillary fd if the kernel delivered one. A short read or a
// payload length beyond MaxPayload is reported as a *ProtocolError
// and the Conn becomes permanently broken.
func (c *Conn) Recv() (*Message, error) {
	if c.err != nil {
		return nil, c.err
	}
	hdrBuf := make([]byte, HeaderSize)
	oobBuf := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := c.c.ReadMsgUnix(hdrBuf, oobBuf)
	if err != nil {
		c.err = &ProtocolError{Op: "read header", Err: err}
		return nil, c.err
	}
	if n != HeaderSize {
		c.err = &ProtocolError{Op: "read header", Err: io.ErrUnexpectedEOF}
		return nil, c.err
	}
	msg := &Message{FD: -1}
	msg.Kind = Kind(binary.LittleEndian.Uint32(hdrBuf[0:4]))
	msg.Seq = binary.LittleEndian.Uint32(hdrBuf[4:8])
	msg.A = int32(binary.LittleEndian.Uint32(hdrBuf[8:12]))
	msg.B = int32(binary.LittleEndian.Uint32(hdrBuf[12:16]))
	msg.C = binary.LittleEndian.Uint32(hdrBuf[16:20])

	if msg.C > 0 {
		if msg.C > MaxPayload {
			c.err = &ProtocolError{Op: "read payload", Err: fmt.Errorf("payload %d exceeds max %d", msg.C, MaxPayload)}
			return nil, c.err
		}
		payload := make([]byte, msg.C)
		if _, err := io.ReadFull(c.c, payload); err != nil {
			c.err = &ProtocolError{Op: "read payload", Err: err}
			return nil, c.err
		}
		msg.Payload = payload
	}

	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oobBuf[:oobn])
		if err != nil {
			c.err = &ProtocolError{Op: "parse oob", Err: err}
			return nil, c.err
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			if len(fds) > 0 {
				msg.FD = fds[0]
			}
		}
	}

	return msg, nil
}
