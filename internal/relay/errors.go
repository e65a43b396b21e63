package relay

import "errors"

var (
	// Admission failures terminate only the offending session.
	ErrBadHandshake = errors.New("bad handshake")
	ErrSlotOccupied = errors.New("slot already occupied")
	ErrUnauthorized = errors.New("owner token rejected")

	// ErrPeerGone marks a send or receive on a connection that is already
	// closed. Callers doing best-effort notification ignore it.
	ErrPeerGone = errors.New("peer gone")
	// ErrTransport wraps genuine write faults on a connection that was
	// still believed open.
	ErrTransport = errors.New("transport failure")

	ErrReceiveTimeout = errors.New("receive timeout")
)
