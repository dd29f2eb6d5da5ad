package model

import "time"

// Player represents a registered player account stored in the database.
type Player struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
