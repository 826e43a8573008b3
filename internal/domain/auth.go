package domain

import "time"

// IssuedToken describes a token handed to a client.
type IssuedToken struct {
	Value       string
	Algorithm   string
	PostQuantum bool
	ExpiresAt   time.Time
}
