package utils

import "github.com/google/uuid"

// GenerateSessionID returns a random version 4 UUID.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateEventID returns a time-ordered version 7 UUID, so event log rows
// sort by creation time. It falls back to version 4 if the clock source
// fails.
func GenerateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
