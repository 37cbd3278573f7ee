package io

import (
	"sync"
)

// KEY_NONE is returned by a keyboard address when no key is pending.
const KEY_NONE = uint8(0)

// Keyboard is a source of key presses for the text displays.
type Keyboard interface {
	// PollKey returns the next pending key, if any. It never blocks.
	PollKey() (key uint8, ok bool, err error)
}

// KeyQueue is a FIFO of key presses. A host goroutine pushes keys while
// the emulator polls them.
type KeyQueue struct {
	mutex  sync.Mutex
	keys   []uint8
	closed bool
}

var _ Keyboard = (*KeyQueue)(nil)

// Push queues a key press.
func (kq *KeyQueue) Push(key uint8) {
	kq.mutex.Lock()
	defer kq.mutex.Unlock()

	if kq.closed {
		return
	}

	kq.keys = append(kq.keys, key)
}

// Close marks the queue as finished. Pending keys are still returned.
func (kq *KeyQueue) Close() {
	kq.mutex.Lock()
	defer kq.mutex.Unlock()

	kq.closed = true
}

// Len returns the number of pending keys.
func (kq *KeyQueue) Len() int {
	kq.mutex.Lock()
	defer kq.mutex.Unlock()

	return len(kq.keys)
}

// PollKey pops the oldest pending key. Once closed and drained, it
// returns ErrInputClosed.
func (kq *KeyQueue) PollKey() (key uint8, ok bool, err error) {
	kq.mutex.Lock()
	defer kq.mutex.Unlock()

	if len(kq.keys) == 0 {
		if kq.closed {
			err = ErrInputClosed
		}
		return
	}

	key = kq.keys[0]
	kq.keys = kq.keys[1:]
	ok = true

	return
}
