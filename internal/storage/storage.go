package storage

import "errors"

var (
	ErrSegmentExists    = errors.New("segment exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrEvictionNotFound = errors.New("eviction not found")
	ErrContextCancelled = errors.New("context cancelled")
)
