package util

import "github.com/google/uuid"

func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a canonical UUID string. Anything else is a
// malformed id and must not reach the store.
func ValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}
