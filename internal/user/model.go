package user

import (
	"errors"
	"time"
)

// User represents a messenger account.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	// ErrUsernameTaken is returned by Create when the username already exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned by Authenticate for any bad username/password pair.
	ErrInvalidCredentials = errors.New("username and/or password are not valid")
)
