package ipc

import (
	"net"
	"os"
)

// Listen opens the compositor's Unix domain listen socket at path,
// removing a stale socket file left over from an unclean previous
// shutdown first.
func Listen(path string) (*net.UnixListener, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Dial connects to the compositor's listen socket as a client.
func Dial(path string) (*Conn, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	c, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

// Accept blocks for the next client connection.
func Accept(l *net.UnixListener) (*Conn, error) {
	c, err := l.AcceptUnix()
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}
