package repository

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrCredentialNotSet = errors.New("master credential not set")
)
