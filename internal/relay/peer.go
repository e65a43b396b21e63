package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Maximum message size allowed from a peer.
	maxMessageSize = 64 * 1024

	// Time allowed to write the close frame.
	closeWait = time.Second

	defaultWriteWait = 10 * time.Second
)

// Conn is the outbound side of a live connection as seen by the registry.
type Conn interface {
	Send(msg any) error
	SendRaw(data []byte) error
	Close() error
}

// Transport is the full connection capability a session drives.
type Transport interface {
	Conn
	// Receive blocks for the next inbound message for at most timeout.
	// It returns ErrReceiveTimeout when nothing arrived and an error
	// wrapping ErrPeerGone once the connection is closed.
	Receive(timeout time.Duration) ([]byte, error)
	RemoteAddr() string
}

// Peer wraps a websocket connection. Writes are serialized with a mutex
// because the registry and both sessions of a room may write concurrently;
// all reads happen on a single pump goroutine started by NewPeer.
type Peer struct {
	conn      *websocket.Conn
	writeWait time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	inbound chan []byte
	readErr error // written before inbound is closed
}

// NewPeer takes ownership of conn and starts reading from it.
func NewPeer(conn *websocket.Conn, writeWait time.Duration) *Peer {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	p := &Peer{
		conn:      conn,
		writeWait: writeWait,
		done:      make(chan struct{}),
		inbound:   make(chan []byte),
	}
	conn.SetReadLimit(maxMessageSize)
	go p.readPump()
	return p
}

// readPump forwards inbound frames to Receive until the connection fails
// or Close is called.
func (p *Peer) readPump() {
	defer close(p.inbound)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.readErr = err
			return
		}
		select {
		case p.inbound <- data:
		case <-p.done:
			return
		}
	}
}

func (p *Peer) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-p.inbound:
		if !ok {
			if p.readErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrPeerGone, p.readErr)
			}
			return nil, ErrPeerGone
		}
		return data, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

func (p *Peer) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return p.SendRaw(data)
}

// SendRaw writes data as a single text frame without re-encoding it.
func (p *Peer) SendRaw(data []byte) error {
	select {
	case <-p.done:
		return ErrPeerGone
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// Close sends a close frame and releases the connection. It is idempotent
// and unblocks a pending Receive.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		err = p.conn.Close()
	})
	return err
}

func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

func classifyWriteError(err error) error {
	if errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return fmt.Errorf("%w: %w", ErrPeerGone, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
