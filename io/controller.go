package io

import (
	"sync"
)

// Controller input bit positions, one bit per digital input.
//
// One historical controller variant routed two different inputs onto the
// same bit. This layout keeps every input on its own bit; see
// ControllerState.Byte.
const (
	CONTROLLER_UP     = uint8(1 << 0)
	CONTROLLER_DOWN   = uint8(1 << 1)
	CONTROLLER_LEFT   = uint8(1 << 2)
	CONTROLLER_RIGHT  = uint8(1 << 3)
	CONTROLLER_A      = uint8(1 << 4)
	CONTROLLER_B      = uint8(1 << 5)
	CONTROLLER_START  = uint8(1 << 6)
	CONTROLLER_SELECT = uint8(1 << 7)
)

// ControllerState is a snapshot of the digital inputs.
type ControllerState struct {
	Up, Down, Left, Right bool
	A, B                  bool
	Start, Select         bool
}

// Byte packs the state, one bit per input.
func (cs ControllerState) Byte() (value uint8) {
	bits := []struct {
		pressed bool
		mask    uint8
	}{
		{cs.Up, CONTROLLER_UP},
		{cs.Down, CONTROLLER_DOWN},
		{cs.Left, CONTROLLER_LEFT},
		{cs.Right, CONTROLLER_RIGHT},
		{cs.A, CONTROLLER_A},
		{cs.B, CONTROLLER_B},
		{cs.Start, CONTROLLER_START},
		{cs.Select, CONTROLLER_SELECT},
	}

	for _, bit := range bits {
		if bit.pressed {
			value |= bit.mask
		}
	}

	return
}

// Controller is a polled source of controller input.
type Controller interface {
	Poll() (state ControllerState, err error)
}

// ControllerLatch is a Controller whose state is set by the host.
type ControllerLatch struct {
	mutex sync.Mutex
	state ControllerState
}

var _ Controller = (*ControllerLatch)(nil)

// Set replaces the latched state.
func (cl *ControllerLatch) Set(state ControllerState) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.state = state
}

// Poll returns the latched state.
func (cl *ControllerLatch) Poll() (state ControllerState, err error) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	state = cl.state

	return
}
