package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"room-relay-backend/internal/join"
	"room-relay-backend/internal/repository"

	"github.com/sirupsen/logrus"
)

// TokenVerifier checks the master token an owner presents at handshake.
type TokenVerifier interface {
	VerifyToken(token string) bool
}

type Options struct {
	// PollInterval bounds the wait for an inbound message, and therefore
	// how stale an expiry can get before a session notices it.
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
}

// Relay runs sessions for accepted connections.
type Relay struct {
	store    RoomStore
	registry *Registry
	enforcer *Enforcer
	tokens   TokenVerifier
	opts     Options
}

// NewRelay wires a relay. A nil tokens verifier admits every owner handshake.
func NewRelay(store RoomStore, registry *Registry, enforcer *Enforcer, tokens TokenVerifier, opts Options) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Relay{
		store:    store,
		registry: registry,
		enforcer: enforcer,
		tokens:   tokens,
		opts:     opts,
	}
}

// State is a session's position in its lifecycle
type State int

const (
	StateConnecting State = iota
	StateAwaitingHandshake
	StateRelaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateRelaying:
		return "relaying"
	default:
		return "closed"
	}
}

type session struct {
	relay  *Relay
	roomID string
	t      Transport

	role     Role
	attached bool
	state    State
	log      *logrus.Entry

	cleanupOnce sync.Once
}

// Serve drives one accepted connection through handshake and relaying and
// returns once it is closed and cleaned up.
func (r *Relay) Serve(ctx context.Context, roomID string, t Transport) {
	s := &session{
		relay:  r,
		roomID: roomID,
		t:      t,
		state:  StateConnecting,
		log:    logrus.WithFields(logrus.Fields{"room_id": roomID, "remote": t.RemoteAddr()}),
	}
	s.run(ctx)
}

func (s *session) run(ctx context.Context) {
	defer s.cleanup()

	s.state = StateAwaitingHandshake
	role, err := s.handshake(ctx)
	if err != nil {
		s.reject(err)
		return
	}
	s.role = role
	s.attached = true
	s.log = s.log.WithField("role", role)
	s.log.Info("Peer attached")

	s.relay.registry.BroadcastPresence(s.roomID)

	s.state = StateRelaying
	s.loop(ctx)
}

func (s *session) handshake(ctx context.Context) (Role, error) {
	data, err := s.t.Receive(s.relay.opts.HandshakeTimeout)
	if err != nil {
		if errors.Is(err, ErrReceiveTimeout) {
			return "", fmt.Errorf("%w: no handshake within %s", ErrBadHandshake, s.relay.opts.HandshakeTimeout)
		}
		return "", err
	}

	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadHandshake, err)
	}

	switch hs.Role {
	case RoleOwner:
		if s.relay.tokens != nil && !s.relay.tokens.VerifyToken(hs.Token) {
			return "", ErrUnauthorized
		}
	case RoleGuest:
		if s.relay.registry.Occupied(s.roomID, RoleGuest) {
			return "", ErrSlotOccupied
		}
		if err := s.admitGuest(ctx, hs.Key); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrBadHandshake, hs.Role)
	}

	if err := s.relay.registry.Attach(s.roomID, hs.Role, s.t); err != nil {
		return "", err
	}
	return hs.Role, nil
}

func (s *session) admitGuest(ctx context.Context, key string) error {
	room, err := s.relay.store.FindRoom(ctx, s.roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return join.ErrNotJoinable
	}
	if err != nil {
		return fmt.Errorf("failed to load room: %w", err)
	}
	return join.Validate(room, key, s.relay.enforcer.now())
}

// reject tells the client why its handshake failed, best-effort.
func (s *session) reject(err error) {
	var reason string
	switch {
	case errors.Is(err, ErrSlotOccupied):
		reason = ReasonSlotOccupied
	case errors.Is(err, ErrUnauthorized):
		reason = ReasonUnauthorized
	case errors.Is(err, ErrBadHandshake):
		reason = ReasonBadHandshake
	case join.IsDenial(err):
		reason = errorReason(err)
	}

	if errors.Is(err, ErrPeerGone) {
		s.log.Debug("Peer left before handshake")
		return
	}
	s.log.WithError(err).Warn("Handshake rejected")
	if reason != "" {
		logSendError(s.t.Send(systemMessage(reason)), s.roomID, reason)
	}
}

func errorReason(err error) string {
	for _, denial := range []error{join.ErrNotJoinable, join.ErrInvalidOrExpired, join.ErrExpired} {
		if errors.Is(err, denial) {
			return denial.Error()
		}
	}
	return ""
}

func (s *session) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		valid, err := s.relay.enforcer.JoinStillValid(ctx, s.roomID)
		if err != nil {
			// store hiccup: keep relaying and re-check on the next tick
			s.log.WithError(err).Warn("Could not re-check room expiry")
		} else if !valid {
			s.log.Info("Room join expired, forcing expiry")
			if _, err := s.relay.enforcer.ForceExpire(ctx, s.roomID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
				s.log.WithError(err).Warn("Forced expiry failed")
			}
			return
		}

		data, err := s.t.Receive(s.relay.opts.PollInterval)
		if errors.Is(err, ErrReceiveTimeout) {
			continue
		}
		if err != nil {
			s.log.WithError(err).Debug("Peer disconnected")
			return
		}
		s.forward(data)
	}
}

// forward relays data unmodified to the opposite slot. With nobody there
// the message is dropped.
func (s *session) forward(data []byte) {
	if !json.Valid(data) {
		s.log.Debug("Dropping non-JSON message")
		return
	}

	owner, guest := s.relay.registry.Get(s.roomID)
	target := guest
	if s.role.Opposite() == RoleOwner {
		target = owner
	}
	if target == nil {
		s.log.Debug("No peer to relay to, dropping message")
		return
	}
	logSendError(target.SendRaw(data), s.roomID, "relay")
}

func (s *session) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.attached {
			s.relay.registry.Detach(s.roomID, s.role, s.t)
			s.relay.registry.BroadcastPresence(s.roomID)
			s.log.WithField("last_state", s.state.String()).Info("Peer detached")
		}
		_ = s.t.Close()
		s.state = StateClosed
	})
}
