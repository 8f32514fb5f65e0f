package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique claim job ID
func NewJobID() string {
	return uuid.New().String()
}
