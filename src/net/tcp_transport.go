package net

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

/*
TCPTransport frames one WireMessage per write:

	4 bytes  big-endian sender ID
	4 bytes  big-endian payload length
	n bytes  payload

Connections are dialled lazily per target and kept in a small pool; a failed
write drops the connection and the message (delivery is best effort).
*/

const maxFramePayload = 8 * 1024 * 1024

// TCPTransport implements the Transport interface over plain TCP.
type TCPTransport struct {
	mu sync.Mutex

	bindAddr   string
	listener   net.Listener
	consumerCh chan WireMessage
	conns      map[string]net.Conn
	timeout    time.Duration
	logger     *logrus.Entry

	shutdown   bool
	shutdownCh chan struct{}
}

// NewTCPTransport creates a transport bound to bindAddr.
func NewTCPTransport(bindAddr string, timeout time.Duration, logger *logrus.Entry) (*TCPTransport, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	t := &TCPTransport{
		bindAddr:   bindAddr,
		listener:   listener,
		consumerCh: make(chan WireMessage, 64),
		conns:      map[string]net.Conn{},
		timeout:    timeout,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}

	return t, nil
}

// Listen implements the Transport interface.
func (t *TCPTransport) Listen() {
	go t.acceptLoop()
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.WithError(err).Error("accepting connection")
				continue
			}
		}
		go t.readLoop(conn)
	}
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err != io.EOF {
				t.logger.WithError(err).Debug("reading frame header")
			}
			return
		}

		fromID := binary.BigEndian.Uint32(header[:4])
		length := binary.BigEndian.Uint32(header[4:])
		if length > maxFramePayload {
			t.logger.WithField("length", length).Error("oversized frame")
			return
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			t.logger.WithError(err).Debug("reading frame payload")
			return
		}

		select {
		case t.consumerCh <- WireMessage{FromID: fromID, Payload: payload}:
		case <-t.shutdownCh:
			return
		}
	}
}

// Consumer implements the Transport interface.
func (t *TCPTransport) Consumer() <-chan WireMessage {
	return t.consumerCh
}

// LocalAddr implements the Transport interface.
func (t *TCPTransport) LocalAddr() string {
	return t.listener.Addr().String()
}

// Send implements the Transport interface.
func (t *TCPTransport) Send(target string, msg WireMessage) error {
	conn, err := t.getConn(target)
	if err != nil {
		return err
	}

	frame := make([]byte, 8+len(msg.Payload))
	binary.BigEndian.PutUint32(frame[:4], msg.FromID)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(msg.Payload)))
	copy(frame[8:], msg.Payload)

	if t.timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	if _, err := conn.Write(frame); err != nil {
		t.dropConn(target)
		return fmt.Errorf("sending to %s: %v", target, err)
	}

	return nil
}

func (t *TCPTransport) getConn(target string) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown {
		return nil, fmt.Errorf("transport is shut down")
	}

	if conn, ok := t.conns[target]; ok {
		return conn, nil
	}

	conn, err := net.DialTimeout("tcp", target, t.timeout)
	if err != nil {
		return nil, err
	}

	t.conns[target] = conn
	return conn, nil
}

func (t *TCPTransport) dropConn(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[target]; ok {
		conn.Close()
		delete(t.conns, target)
	}
}

// Close implements the Transport interface.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown {
		return nil
	}
	t.shutdown = true
	close(t.shutdownCh)

	for target, conn := range t.conns {
		conn.Close()
		delete(t.conns, target)
	}

	return t.listener.Close()
}
