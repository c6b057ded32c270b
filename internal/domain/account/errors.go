package account

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidUsername = errors.New("username may only contain letters, digits, '-' and '_'")
	ErrInvalidRole     = errors.New("invalid role")
)
