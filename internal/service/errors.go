package service

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidExpiry      = errors.New("hours must be greater than zero")
	ErrGuestExists        = errors.New("guest already set up for this room")
	ErrGuestNotFound      = errors.New("no guest set up for this room")
	ErrWrongPIN           = errors.New("wrong name or PIN")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrJoinDenied wraps one of the join denial errors
	ErrJoinDenied = errors.New("join denied")
)
