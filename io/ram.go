package io

import (
	"iter"
	"maps"
)

// Ram is a bus with no special addresses.
type Ram struct {
	Memory
}

var _ Device = (*Ram)(nil)

// NewRam creates a zeroed RAM device.
func NewRam() *Ram {
	return &Ram{}
}

// Defines returns no defines; every address is plain memory.
func (ram *Ram) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{})
}
