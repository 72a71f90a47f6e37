package service

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("saved session not found")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternalServer  = errors.New("internal server error")
)
